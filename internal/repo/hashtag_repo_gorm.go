package repo

import (
	"context"

	"gorm.io/gorm"

	"doof/internal/domain"
)

type HashtagRepo struct{ db *gorm.DB }

func NewHashtagRepo(db *gorm.DB) *HashtagRepo { return &HashtagRepo{db: db} }

// Popular 按餐厅 + 菜品引用次数排序
func (r *HashtagRepo) Popular(ctx context.Context, q string, limit int) ([]domain.HashtagCount, error) {
	if limit <= 0 || limit > domain.MaxLimit {
		limit = domain.DefaultLimit
	}
	sql := `SELECT h.name AS name, COUNT(u.hashtag_id) AS uses
FROM hashtags h
LEFT JOIN (
  SELECT hashtag_id FROM restaurant_hashtags
  UNION ALL
  SELECT hashtag_id FROM dish_hashtags
) u ON u.hashtag_id = h.id
WHERE h.name LIKE ?
GROUP BY h.id, h.name
ORDER BY uses DESC, h.name ASC
LIMIT ?`
	var out []domain.HashtagCount
	err := r.db.WithContext(ctx).Raw(sql, likePattern(domain.NormalizeTag(q)), limit).Scan(&out).Error
	return out, err
}

func (r *HashtagRepo) List(ctx context.Context, q string, p domain.Page) ([]domain.Hashtag, int64, error) {
	p = p.Normalize()
	tx := r.db.WithContext(ctx).Model(&domain.Hashtag{})
	if q != "" {
		tx = tx.Where("name LIKE ?", likePattern(domain.NormalizeTag(q)))
	}
	tx = tx.Session(&gorm.Session{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Hashtag
	err := tx.Order("name ASC").Offset(p.Offset).Limit(p.Limit).Find(&out).Error
	return out, total, err
}

func (r *HashtagRepo) Rename(ctx context.Context, id, name, category string) error {
	res := r.db.WithContext(ctx).Model(&domain.Hashtag{}).Where("id = ?", id).
		Updates(map[string]any{"name": domain.NormalizeTag(name), "category": category})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *HashtagRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM restaurant_hashtags WHERE hashtag_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM dish_hashtags WHERE hashtag_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Hashtag{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
