package repo

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"doof/internal/domain"
	"doof/pkg/utils"
)

// Migrate 建表（含 many2many 关联表）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Hashtag{},
		&domain.Restaurant{},
		&domain.Dish{},
		&domain.List{},
		&domain.ListItem{},
		&domain.ListFollow{},
		&domain.Submission{},
	)
}

func isDupKey(err error) bool {
	if err == nil {
		return false
	}
	// 不依赖 gorm.ErrDuplicatedKey（需要 TranslateError）
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

// likePattern 大小写不敏感的模糊匹配（配合 LOWER(col) LIKE ?）
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// clampedAdd col = GREATEST(0, col + delta)；sqlite 没有 GREATEST，用双参 MAX
func clampedAdd(db *gorm.DB, col string, delta int) clause.Expr {
	if db.Dialector.Name() == "sqlite" {
		return gorm.Expr("MAX(0, "+col+" + ?)", delta)
	}
	return gorm.Expr("GREATEST(0, "+col+" + ?)", delta)
}

func ensureHashtags(tx *gorm.DB, names []string) ([]domain.Hashtag, error) {
	names = domain.NormalizeTags(names)
	out := make([]domain.Hashtag, 0, len(names))
	for _, n := range names {
		var h domain.Hashtag
		err := tx.Where(domain.Hashtag{Name: n}).
			Attrs(domain.Hashtag{ID: utils.NewID()}).
			FirstOrCreate(&h).Error
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func orderFor(sort, table string) string {
	switch sort {
	case domain.SortNewest:
		return table + ".created_at DESC"
	case domain.SortPopular:
		return table + ".adds DESC, " + table + ".name ASC"
	default:
		return table + ".name ASC"
	}
}

// hashtagSubquery 命中全部标签的实体 id
func hashtagSubquery(db *gorm.DB, joinTable, fk string, tags []string) *gorm.DB {
	return db.Table(joinTable+" jt").
		Select("jt."+fk).
		Joins("JOIN hashtags h ON h.id = jt.hashtag_id").
		Where("h.name IN ?", tags).
		Group("jt."+fk).
		Having("COUNT(DISTINCT h.id) = ?", len(tags))
}
