package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"doof/internal/domain"
	"doof/pkg/utils"
)

type RestaurantRepo struct{ db *gorm.DB }

func NewRestaurantRepo(db *gorm.DB) *RestaurantRepo { return &RestaurantRepo{db: db} }

func (r *RestaurantRepo) Create(ctx context.Context, rest *domain.Restaurant, tags []string) error {
	if rest.ID == "" {
		rest.ID = utils.NewID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hs, err := ensureHashtags(tx, tags)
		if err != nil {
			return err
		}
		rest.Hashtags = hs
		return tx.Omit("Dishes").Create(rest).Error
	})
}

func (r *RestaurantRepo) FindByID(ctx context.Context, id string, withDishes bool) (*domain.Restaurant, error) {
	q := r.db.WithContext(ctx).Preload("Hashtags")
	if withDishes {
		q = q.Preload("Dishes", func(db *gorm.DB) *gorm.DB { return db.Order("dishes.adds DESC, dishes.name ASC") }).
			Preload("Dishes.Hashtags")
	}
	var out domain.Restaurant
	err := q.First(&out, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RestaurantRepo) FindByPlaceID(ctx context.Context, placeID string) (*domain.Restaurant, error) {
	var out domain.Restaurant
	err := r.db.WithContext(ctx).First(&out, "google_place_id = ?", placeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByNameCity city 为空时只按名称匹配
func (r *RestaurantRepo) FindByNameCity(ctx context.Context, name, city string) (*domain.Restaurant, error) {
	var out domain.Restaurant
	q := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name)
	if city != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}
	err := q.Order("created_at ASC").First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RestaurantRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Restaurant, error) {
	var out []domain.Restaurant
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *RestaurantRepo) Search(ctx context.Context, f domain.RestaurantFilter) ([]domain.Restaurant, int64, error) {
	p := f.Page.Normalize()
	q := r.db.WithContext(ctx).Model(&domain.Restaurant{})
	if f.Q != "" {
		q = q.Where("LOWER(restaurants.name) LIKE ?", likePattern(f.Q))
	}
	if f.City != "" {
		q = q.Where("LOWER(restaurants.city) = LOWER(?)", f.City)
	}
	if f.Neighborhood != "" {
		q = q.Where("LOWER(restaurants.neighborhood) = LOWER(?)", f.Neighborhood)
	}
	if tags := domain.NormalizeTags(f.Hashtags); len(tags) > 0 {
		q = q.Where("restaurants.id IN (?)", hashtagSubquery(r.db, "restaurant_hashtags", "restaurant_id", tags))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Restaurant
	err := q.Preload("Hashtags").
		Order(orderFor(f.Sort, "restaurants")).
		Offset(p.Offset).Limit(p.Limit).
		Find(&out).Error
	return out, total, err
}

// Update 覆盖基础字段；tags 非 nil 时替换标签
func (r *RestaurantRepo) Update(ctx context.Context, rest *domain.Restaurant, tags []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Restaurant{}).Where("id = ?", rest.ID).
			Select("name", "address", "city", "neighborhood", "zipcode", "google_place_id", "latitude", "longitude").
			Updates(rest)
		if res.Error != nil {
			return res.Error
		}
		if tags == nil {
			return nil
		}
		hs, err := ensureHashtags(tx, tags)
		if err != nil {
			return err
		}
		return tx.Model(&domain.Restaurant{ID: rest.ID}).Association("Hashtags").Replace(hs)
	})
}

// Delete 连同菜品、标签关联、指向它们的列表条目一起删除
func (r *RestaurantRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dishIDs []string
		if err := tx.Model(&domain.Dish{}).Where("restaurant_id = ?", id).Pluck("id", &dishIDs).Error; err != nil {
			return err
		}
		if len(dishIDs) > 0 {
			if err := deleteListItemsFor(tx, domain.ItemTypeDish, dishIDs); err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM dish_hashtags WHERE dish_id IN ?", dishIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", dishIDs).Delete(&domain.Dish{}).Error; err != nil {
				return err
			}
		}
		if err := deleteListItemsFor(tx, domain.ItemTypeRestaurant, []string{id}); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM restaurant_hashtags WHERE restaurant_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Restaurant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *RestaurantRepo) IncrementAdds(ctx context.Context, id string, delta int) error {
	return r.db.WithContext(ctx).Model(&domain.Restaurant{}).Where("id = ?", id).
		UpdateColumn("adds", clampedAdd(r.db, "adds", delta)).Error
}

// deleteListItemsFor 删除指向给定实体的列表条目，并回写受影响列表的 item_count
func deleteListItemsFor(tx *gorm.DB, itemType string, ids []string) error {
	var listIDs []string
	if err := tx.Model(&domain.ListItem{}).
		Where("item_type = ? AND item_id IN ?", itemType, ids).
		Distinct().Pluck("list_id", &listIDs).Error; err != nil {
		return err
	}
	if len(listIDs) == 0 {
		return nil
	}
	if err := tx.Where("item_type = ? AND item_id IN ?", itemType, ids).Delete(&domain.ListItem{}).Error; err != nil {
		return err
	}
	return recountItems(tx, listIDs)
}

func recountItems(tx *gorm.DB, listIDs []string) error {
	return tx.Model(&domain.List{}).Where("id IN ?", listIDs).
		UpdateColumn("item_count", gorm.Expr("(SELECT COUNT(*) FROM list_items li WHERE li.list_id = lists.id)")).Error
}
