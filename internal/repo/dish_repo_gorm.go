package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"doof/internal/domain"
	"doof/pkg/utils"
)

type DishRepo struct{ db *gorm.DB }

func NewDishRepo(db *gorm.DB) *DishRepo { return &DishRepo{db: db} }

func (r *DishRepo) Create(ctx context.Context, d *domain.Dish, tags []string) error {
	if d.ID == "" {
		d.ID = utils.NewID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hs, err := ensureHashtags(tx, tags)
		if err != nil {
			return err
		}
		d.Hashtags = hs
		return tx.Omit("Restaurant").Create(d).Error
	})
}

func (r *DishRepo) FindByID(ctx context.Context, id string) (*domain.Dish, error) {
	var out domain.Dish
	err := r.db.WithContext(ctx).Preload("Hashtags").Preload("Restaurant").First(&out, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *DishRepo) FindByNameRestaurant(ctx context.Context, name, restaurantID string) (*domain.Dish, error) {
	var out domain.Dish
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?) AND restaurant_id = ?", name, restaurantID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *DishRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Dish, error) {
	var out []domain.Dish
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Preload("Restaurant").Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *DishRepo) Search(ctx context.Context, f domain.DishFilter) ([]domain.Dish, int64, error) {
	p := f.Page.Normalize()
	q := r.db.WithContext(ctx).Model(&domain.Dish{})
	if f.Q != "" {
		q = q.Where("LOWER(dishes.name) LIKE ?", likePattern(f.Q))
	}
	if f.RestaurantID != "" {
		q = q.Where("dishes.restaurant_id = ?", f.RestaurantID)
	}
	if f.City != "" {
		q = q.Where("dishes.restaurant_id IN (?)",
			r.db.Model(&domain.Restaurant{}).Select("id").Where("LOWER(city) = LOWER(?)", f.City))
	}
	if tags := domain.NormalizeTags(f.Hashtags); len(tags) > 0 {
		q = q.Where("dishes.id IN (?)", hashtagSubquery(r.db, "dish_hashtags", "dish_id", tags))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Dish
	err := q.Preload("Hashtags").Preload("Restaurant").
		Order(orderFor(f.Sort, "dishes")).
		Offset(p.Offset).Limit(p.Limit).
		Find(&out).Error
	return out, total, err
}

func (r *DishRepo) Update(ctx context.Context, d *domain.Dish, tags []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Dish{}).Where("id = ?", d.ID).
			Select("name", "description", "price", "restaurant_id").
			Updates(d).Error; err != nil {
			return err
		}
		if tags == nil {
			return nil
		}
		hs, err := ensureHashtags(tx, tags)
		if err != nil {
			return err
		}
		return tx.Model(&domain.Dish{ID: d.ID}).Association("Hashtags").Replace(hs)
	})
}

func (r *DishRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteListItemsFor(tx, domain.ItemTypeDish, []string{id}); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM dish_hashtags WHERE dish_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Dish{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *DishRepo) IncrementAdds(ctx context.Context, id string, delta int) error {
	return r.db.WithContext(ctx).Model(&domain.Dish{}).Where("id = ?", id).
		UpdateColumn("adds", clampedAdd(r.db, "adds", delta)).Error
}
