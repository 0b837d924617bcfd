package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"doof/internal/core/errs"
	"doof/internal/domain"
	"doof/pkg/utils"
)

type ListRepo struct{ db *gorm.DB }

func NewListRepo(db *gorm.DB) *ListRepo { return &ListRepo{db: db} }

func applyListFilter(q *gorm.DB, f domain.ListFilter) *gorm.DB {
	if f.Q != "" {
		like := likePattern(f.Q)
		q = q.Where("(LOWER(lists.name) LIKE ? OR LOWER(lists.description) LIKE ?)", like, like)
	}
	if f.Type != "" {
		q = q.Where("lists.list_type = ?", f.Type)
	}
	if f.City != "" {
		q = q.Where("LOWER(lists.city) = LOWER(?)", f.City)
	}
	if tag := domain.NormalizeTag(f.Tag); tag != "" {
		// tags 以 JSON 数组存储
		q = q.Where("lists.tags LIKE ?", `%"`+tag+`"%`)
	}
	return q
}

func (r *ListRepo) page(q *gorm.DB, p domain.Page, order string) ([]domain.List, int64, error) {
	p = p.Normalize()
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.List
	err := q.Order(order).Offset(p.Offset).Limit(p.Limit).Find(&out).Error
	return out, total, err
}

// FindListsByUser followed=false 为用户创建的列表；followed=true 为关注的列表（不含已转私密的他人列表）
func (r *ListRepo) FindListsByUser(ctx context.Context, userID string, followed bool, f domain.ListFilter) ([]domain.List, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.List{})
	if followed {
		q = q.Joins("JOIN list_follows lf ON lf.list_id = lists.id AND lf.user_id = ?", userID).
			Where("lists.is_public = ? OR lists.user_id = ?", true, userID)
	} else {
		q = q.Where("lists.user_id = ?", userID)
	}
	return r.page(applyListFilter(q, f), f.Page, "lists.created_at DESC")
}

func (r *ListRepo) FindPublicLists(ctx context.Context, f domain.ListFilter, includePrivate bool) ([]domain.List, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.List{})
	if !includePrivate {
		q = q.Where("lists.is_public = ?", true)
	}
	return r.page(applyListFilter(q, f), f.Page, "lists.saved_count DESC, lists.updated_at DESC")
}

func (r *ListRepo) FindListByID(ctx context.Context, id string) (*domain.List, error) {
	var l domain.List
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListRepo) FindListItems(ctx context.Context, listID string) ([]domain.ListItem, error) {
	var out []domain.ListItem
	err := r.db.WithContext(ctx).Where("list_id = ?", listID).Order("added_at DESC").Find(&out).Error
	return out, err
}

func (r *ListRepo) ItemTypes(ctx context.Context, listID string) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&domain.ListItem{}).
		Where("list_id = ?", listID).Distinct().Pluck("item_type", &out).Error
	return out, err
}

func (r *ListRepo) CreateList(ctx context.Context, l *domain.List) error {
	if l.ID == "" {
		l.ID = utils.NewID()
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return r.db.WithContext(ctx).Omit("Items").Create(l).Error
}

func (r *ListRepo) UpdateList(ctx context.Context, id string, p domain.ListPatch) (*domain.List, error) {
	var out *domain.List
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l domain.List
		if err := tx.First(&l, "id = ?", id).Error; err != nil {
			return err
		}
		cols := []string{"updated_at"}
		if p.Name != nil {
			l.Name = *p.Name
			cols = append(cols, "name")
		}
		if p.Description != nil {
			l.Description = *p.Description
			cols = append(cols, "description")
		}
		if p.ListType != nil {
			l.ListType = *p.ListType
			cols = append(cols, "list_type")
		}
		if p.Tags != nil {
			l.Tags = *p.Tags
			cols = append(cols, "tags")
		}
		if p.City != nil {
			l.City = *p.City
			cols = append(cols, "city")
		}
		if p.IsPublic != nil {
			l.IsPublic = *p.IsPublic
			cols = append(cols, "is_public")
		}
		l.UpdatedAt = time.Now()
		if err := tx.Model(&l).Select(cols).Updates(&l).Error; err != nil {
			return err
		}
		out = &l
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return out, err
}

func (r *ListRepo) DeleteList(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_id = ?", id).Delete(&domain.ListItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("list_id = ?", id).Delete(&domain.ListFollow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.List{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AddItemToList 同一列表同一目标只能出现一次（409）
func (r *ListRepo) AddItemToList(ctx context.Context, item *domain.ListItem) error {
	if item.ID == "" {
		item.ID = utils.NewID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.ListItem{}).
			Where("list_id = ? AND item_type = ? AND item_id = ?", item.ListID, item.ItemType, item.ItemID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errs.Conflict("item already in list")
		}
		if err := tx.Create(item).Error; err != nil {
			if isDupKey(err) {
				return errs.Conflict("item already in list")
			}
			return err
		}
		return tx.Model(&domain.List{}).Where("id = ?", item.ListID).Updates(map[string]any{
			"item_count": gorm.Expr("item_count + 1"),
			"updated_at": time.Now(),
		}).Error
	})
}

// RemoveItemFromList 删除条目 + 更新列表时间戳在同一事务内
func (r *ListRepo) RemoveItemFromList(ctx context.Context, listID, listItemID string) (*domain.ListItem, error) {
	var removed domain.ListItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&removed, "id = ? AND list_id = ?", listItemID, listID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("list item not found")
			}
			return err
		}
		if err := tx.Where("id = ?", listItemID).Delete(&domain.ListItem{}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.List{}).Where("id = ?", listID).Updates(map[string]any{
			"item_count": clampedAdd(tx, "item_count", -1),
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// FollowList 幂等；返回是否新建了关注
func (r *ListRepo) FollowList(ctx context.Context, listID, userID string) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 并发关注同一列表时只有一方插入成功，另一方不报错也不计数
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.ListFollow{ListID: listID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return updateSavedCount(tx, listID, 1)
	})
	return created, err
}

func (r *ListRepo) UnfollowList(ctx context.Context, listID, userID string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("list_id = ? AND user_id = ?", listID, userID).Delete(&domain.ListFollow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return updateSavedCount(tx, listID, -1)
	})
	return removed, err
}

// UpdateListSavedCount saved_count 不会低于 0
func (r *ListRepo) UpdateListSavedCount(ctx context.Context, listID string, delta int) error {
	return updateSavedCount(r.db.WithContext(ctx), listID, delta)
}

func updateSavedCount(tx *gorm.DB, listID string, delta int) error {
	return tx.Model(&domain.List{}).Where("id = ?", listID).
		UpdateColumn("saved_count", clampedAdd(tx, "saved_count", delta)).Error
}

func (r *ListRepo) FollowingSet(ctx context.Context, userID string, listIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(listIDs))
	if userID == "" || len(listIDs) == 0 {
		return out, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.ListFollow{}).
		Where("user_id = ? AND list_id IN ?", userID, listIDs).
		Pluck("list_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// CleanupOrphans 删除目标已不存在的列表条目，并重算所有列表的 item_count
func (r *ListRepo) CleanupOrphans(ctx context.Context) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("item_type = ? AND item_id NOT IN (?)", domain.ItemTypeRestaurant,
			tx.Model(&domain.Restaurant{}).Select("id")).Delete(&domain.ListItem{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		res = tx.Where("item_type = ? AND item_id NOT IN (?)", domain.ItemTypeDish,
			tx.Model(&domain.Dish{}).Select("id")).Delete(&domain.ListItem{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return tx.Model(&domain.List{}).Where("1 = 1").
			UpdateColumn("item_count", gorm.Expr("(SELECT COUNT(*) FROM list_items li WHERE li.list_id = lists.id)")).Error
	})
	return removed, err
}
