package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"doof/internal/domain"
	"doof/pkg/utils"
)

type SubmissionRepo struct{ db *gorm.DB }

func NewSubmissionRepo(db *gorm.DB) *SubmissionRepo { return &SubmissionRepo{db: db} }

func (r *SubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	if s.ID == "" {
		s.ID = utils.NewID()
	}
	if s.Status == "" {
		s.Status = domain.SubmissionPending
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepo) FindByID(ctx context.Context, id string) (*domain.Submission, error) {
	var s domain.Submission
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepo) list(q *gorm.DB, p domain.Page) ([]domain.Submission, int64, error) {
	p = p.Normalize()
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Submission
	err := q.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&out).Error
	return out, total, err
}

func (r *SubmissionRepo) ListByUser(ctx context.Context, userID string, p domain.Page) ([]domain.Submission, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&domain.Submission{}).Where("user_id = ?", userID), p)
}

// ListByStatus status 为空时返回全部
func (r *SubmissionRepo) ListByStatus(ctx context.Context, status string, p domain.Page) ([]domain.Submission, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Submission{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return r.list(q, p)
}

func (r *SubmissionRepo) Review(ctx context.Context, id, status, reviewer string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.Submission{}).
		Where("id = ? AND status = ?", id, domain.SubmissionPending).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewer,
			"reviewed_at": &now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Reopen 审批后创建实体失败时回滚为 pending
func (r *SubmissionRepo) Reopen(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Submission{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.SubmissionPending,
			"reviewed_by": "",
			"reviewed_at": nil,
			"updated_at":  time.Now(),
		}).Error
}

func (r *SubmissionRepo) SetCreatedEntity(ctx context.Context, id, entityID string) error {
	return r.db.WithContext(ctx).Model(&domain.Submission{}).Where("id = ?", id).
		Update("created_entity_id", entityID).Error
}
