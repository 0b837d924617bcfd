package domain

import "context"

// 约定：Find* 查不到时返回 (nil, nil)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
	List(ctx context.Context, f UserFilter) ([]User, int64, error)
	Update(ctx context.Context, u *User) error
	SetAccountType(ctx context.Context, id, accountType string) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

type HashtagRepository interface {
	Popular(ctx context.Context, q string, limit int) ([]HashtagCount, error)
	List(ctx context.Context, q string, p Page) ([]Hashtag, int64, error)
	Rename(ctx context.Context, id, name, category string) error
	Delete(ctx context.Context, id string) error
}

type RestaurantRepository interface {
	Create(ctx context.Context, r *Restaurant, tags []string) error
	FindByID(ctx context.Context, id string, withDishes bool) (*Restaurant, error)
	FindByPlaceID(ctx context.Context, placeID string) (*Restaurant, error)
	FindByNameCity(ctx context.Context, name, city string) (*Restaurant, error)
	FindByIDs(ctx context.Context, ids []string) ([]Restaurant, error)
	Search(ctx context.Context, f RestaurantFilter) ([]Restaurant, int64, error)
	Update(ctx context.Context, r *Restaurant, tags []string) error
	Delete(ctx context.Context, id string) error
	IncrementAdds(ctx context.Context, id string, delta int) error
}

type DishRepository interface {
	Create(ctx context.Context, d *Dish, tags []string) error
	FindByID(ctx context.Context, id string) (*Dish, error)
	FindByNameRestaurant(ctx context.Context, name, restaurantID string) (*Dish, error)
	FindByIDs(ctx context.Context, ids []string) ([]Dish, error)
	Search(ctx context.Context, f DishFilter) ([]Dish, int64, error)
	Update(ctx context.Context, d *Dish, tags []string) error
	Delete(ctx context.Context, id string) error
	IncrementAdds(ctx context.Context, id string, delta int) error
}

type ListRepository interface {
	FindListsByUser(ctx context.Context, userID string, followed bool, f ListFilter) ([]List, int64, error)
	FindPublicLists(ctx context.Context, f ListFilter, includePrivate bool) ([]List, int64, error)
	FindListByID(ctx context.Context, id string) (*List, error)
	FindListItems(ctx context.Context, listID string) ([]ListItem, error)
	ItemTypes(ctx context.Context, listID string) ([]string, error)
	CreateList(ctx context.Context, l *List) error
	UpdateList(ctx context.Context, id string, p ListPatch) (*List, error)
	DeleteList(ctx context.Context, id string) error
	AddItemToList(ctx context.Context, item *ListItem) error
	RemoveItemFromList(ctx context.Context, listID, listItemID string) (*ListItem, error)
	FollowList(ctx context.Context, listID, userID string) (bool, error)
	UnfollowList(ctx context.Context, listID, userID string) (bool, error)
	UpdateListSavedCount(ctx context.Context, listID string, delta int) error
	FollowingSet(ctx context.Context, userID string, listIDs []string) (map[string]bool, error)
	CleanupOrphans(ctx context.Context) (removed int64, err error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *Submission) error
	FindByID(ctx context.Context, id string) (*Submission, error)
	ListByUser(ctx context.Context, userID string, p Page) ([]Submission, int64, error)
	ListByStatus(ctx context.Context, status string, p Page) ([]Submission, int64, error)
	// Review 仅当状态为 pending 时生效，返回是否更新
	Review(ctx context.Context, id, status, reviewer string) (bool, error)
	Reopen(ctx context.Context, id string) error
	SetCreatedEntity(ctx context.Context, id, entityID string) error
}
