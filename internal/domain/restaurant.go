package domain

import (
	"strings"
	"time"
)

type Hashtag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Category  string    `gorm:"size:32" json:"category,omitempty"`
	CreatedAt time.Time `json:"-"`
}

// HashtagCount 热门标签（使用次数 = 餐厅 + 菜品引用）
type HashtagCount struct {
	Name  string `json:"name"`
	Count int64  `gorm:"column:uses" json:"count"`
}

// NormalizeTag "#Pizza " → "pizza"
func NormalizeTag(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimLeft(s, "#")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTags 去重、去空
func NormalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

type Restaurant struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Name          string    `gorm:"size:191;not null;index" json:"name"`
	Address       string    `gorm:"size:255" json:"address,omitempty"`
	City          string    `gorm:"size:96;index" json:"city,omitempty"`
	Neighborhood  string    `gorm:"size:96;index" json:"neighborhood,omitempty"`
	Zipcode       string    `gorm:"size:16" json:"zipcode,omitempty"`
	GooglePlaceID *string   `gorm:"size:191;uniqueIndex" json:"google_place_id,omitempty"`
	Latitude      float64   `json:"latitude,omitempty"`
	Longitude     float64   `json:"longitude,omitempty"`
	Adds          int       `gorm:"not null;default:0" json:"adds"`
	CreatedBy     string    `gorm:"size:36" json:"created_by,omitempty"`
	Hashtags      []Hashtag `gorm:"many2many:restaurant_hashtags;" json:"hashtags,omitempty"`
	Dishes        []Dish    `gorm:"foreignKey:RestaurantID" json:"dishes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Dish struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Name         string      `gorm:"size:191;not null;index" json:"name"`
	Description  string      `gorm:"size:1024" json:"description,omitempty"`
	Price        float64     `json:"price,omitempty"`
	RestaurantID string      `gorm:"size:36;not null;index" json:"restaurant_id"`
	Restaurant   *Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
	Adds         int         `gorm:"not null;default:0" json:"adds"`
	CreatedBy    string      `gorm:"size:36" json:"created_by,omitempty"`
	Hashtags     []Hashtag   `gorm:"many2many:dish_hashtags;" json:"hashtags,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

const (
	SortName    = "name"
	SortNewest  = "newest"
	SortPopular = "popular"
)

type RestaurantFilter struct {
	Q            string
	City         string
	Neighborhood string
	Hashtags     []string // 必须全部命中
	Sort         string
	Page
}

type DishFilter struct {
	Q            string
	RestaurantID string
	City         string
	Hashtags     []string
	Sort         string
	Page
}
