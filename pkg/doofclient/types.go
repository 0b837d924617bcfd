package doofclient

import "time"

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	AccountType string `json:"account_type"`
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Limit int   `json:"limit"`
	Page  int   `json:"page"`
}

type List struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	ListType      string     `json:"list_type"`
	UserID        string     `json:"user_id"`
	IsPublic      bool       `json:"is_public"`
	Tags          []string   `json:"tags"`
	City          string     `json:"city,omitempty"`
	SavedCount    int        `json:"saved_count"`
	ItemCount     int        `json:"item_count"`
	Items         []ListItem `json:"items,omitempty"`
	IsFollowing   bool       `json:"is_following"`
	CreatedByUser bool       `json:"created_by_user"`
	CreatorHandle string     `json:"creator_handle,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ListItem struct {
	ID             string    `json:"list_item_id"`
	ListID         string    `json:"list_id"`
	ItemType       string    `json:"item_type"`
	ItemID         string    `json:"item_id"`
	Notes          string    `json:"notes,omitempty"`
	AddedAt        time.Time `json:"added_at"`
	Name           string    `json:"name,omitempty"`
	RestaurantName string    `json:"restaurant_name,omitempty"`
	City           string    `json:"city,omitempty"`
}

// ListsQuery CreatedByUser / FollowedByUser 都为 false 时返回公开列表
type ListsQuery struct {
	CreatedByUser  bool
	FollowedByUser bool
	Type           string
	Q              string
	Page           int
	Limit          int
}

type NewList struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ListType    string   `json:"list_type,omitempty"`
	IsPublic    *bool    `json:"is_public,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	City        string   `json:"city,omitempty"`
}

type FollowResult struct {
	ListID      string `json:"list_id"`
	IsFollowing bool   `json:"is_following"`
	SavedCount  int    `json:"saved_count"`
}

type Place struct {
	PlaceID string  `json:"place_id"`
	Name    string  `json:"name"`
	Address string  `json:"formatted_address"`
	Lat     float64 `json:"latitude"`
	Lng     float64 `json:"longitude"`
}

type StatusResult struct {
	Authenticated bool       `json:"authenticated"`
	User          *User      `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type authResult struct {
	User         User      `json:"user"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
