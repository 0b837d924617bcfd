package domain

import "time"

const (
	ListTypeMixed      = "mixed"
	ListTypeRestaurant = "restaurant"
	ListTypeDish       = "dish"

	ItemTypeRestaurant = "restaurant"
	ItemTypeDish       = "dish"
)

func ValidListType(t string) bool {
	return t == ListTypeMixed || t == ListTypeRestaurant || t == ListTypeDish
}

func ValidItemType(t string) bool { return t == ItemTypeRestaurant || t == ItemTypeDish }

// CheckListTypeCompatibility mixed 接受任意条目；restaurant/dish 列表只接受同类条目
func CheckListTypeCompatibility(listType, itemType string) bool {
	switch listType {
	case ListTypeMixed, "":
		return ValidItemType(itemType)
	case ListTypeRestaurant:
		return itemType == ItemTypeRestaurant
	case ListTypeDish:
		return itemType == ItemTypeDish
	}
	return false
}

type List struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"size:191;not null" json:"name"`
	Description string     `gorm:"size:1024" json:"description,omitempty"`
	ListType    string     `gorm:"size:16;not null" json:"list_type"`
	UserID      string     `gorm:"size:36;not null;index" json:"user_id"`
	IsPublic    bool       `gorm:"not null" json:"is_public"`
	Tags        []string   `gorm:"serializer:json;type:text" json:"tags"`
	City        string     `gorm:"size:96" json:"city,omitempty"`
	SavedCount  int        `gorm:"not null;default:0" json:"saved_count"`
	ItemCount   int        `gorm:"not null;default:0" json:"item_count"`
	Items       []ListItem `gorm:"foreignKey:ListID" json:"items,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 视角相关字段，按请求用户填充
	IsFollowing   bool   `gorm:"-" json:"is_following"`
	CreatedByUser bool   `gorm:"-" json:"created_by_user"`
	CreatorHandle string `gorm:"-" json:"creator_handle,omitempty"`
}

type ListItem struct {
	ID       string    `gorm:"primaryKey;size:36" json:"list_item_id"`
	ListID   string    `gorm:"size:36;not null;uniqueIndex:idx_list_item_target,priority:1" json:"list_id"`
	ItemType string    `gorm:"size:16;not null;uniqueIndex:idx_list_item_target,priority:2" json:"item_type"`
	ItemID   string    `gorm:"size:36;not null;uniqueIndex:idx_list_item_target,priority:3;index" json:"item_id"`
	Notes    string    `gorm:"size:1024" json:"notes,omitempty"`
	AddedAt  time.Time `gorm:"autoCreateTime" json:"added_at"`

	// 解析后的展示字段
	Name           string `gorm:"-" json:"name,omitempty"`
	RestaurantName string `gorm:"-" json:"restaurant_name,omitempty"`
	City           string `gorm:"-" json:"city,omitempty"`
}

type ListFollow struct {
	ListID    string    `gorm:"primaryKey;size:36" json:"list_id"`
	UserID    string    `gorm:"primaryKey;size:36;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ListFilter struct {
	Q    string
	Type string
	City string
	Tag  string
	Page
}

// ListPatch 只更新非 nil 字段
type ListPatch struct {
	Name        *string
	Description *string
	ListType    *string
	Tags        *[]string
	City        *string
	IsPublic    *bool
}
