package domain

import "time"

const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

type Submission struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          string     `gorm:"size:36;not null;index" json:"user_id"`
	Type            string     `gorm:"size:16;not null" json:"type"` // restaurant / dish
	Name            string     `gorm:"size:191;not null" json:"name"`
	Location        string     `gorm:"size:255" json:"location,omitempty"`
	City            string     `gorm:"size:96" json:"city,omitempty"`
	Neighborhood    string     `gorm:"size:96" json:"neighborhood,omitempty"`
	RestaurantID    string     `gorm:"size:36" json:"restaurant_id,omitempty"`
	PlaceID         string     `gorm:"size:191" json:"place_id,omitempty"`
	Tags            []string   `gorm:"serializer:json;type:text" json:"tags"`
	Status          string     `gorm:"size:16;not null;index" json:"status"`
	ReviewedBy      string     `gorm:"size:36" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedEntityID string     `gorm:"size:36" json:"created_entity_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
