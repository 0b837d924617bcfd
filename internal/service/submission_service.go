package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"doof/internal/core/errs"
	"doof/internal/domain"
	"doof/internal/events"
)

type SubmissionService struct {
	subs    domain.SubmissionRepository
	catalog *CatalogService
	pub     events.Publisher
	log     *zap.Logger
}

func NewSubmissionService(subs domain.SubmissionRepository, catalog *CatalogService, pub events.Publisher, log *zap.Logger) *SubmissionService {
	return &SubmissionService{subs: subs, catalog: catalog, pub: pub, log: log}
}

type SubmissionInput struct {
	Type         string   `json:"type" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Location     string   `json:"location"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	RestaurantID string   `json:"restaurant_id"`
	PlaceID      string   `json:"place_id"`
	Tags         []string `json:"tags"`
}

type reviewEvent struct {
	SubmissionID string    `json:"submission_id"`
	Status       string    `json:"status"`
	ReviewedBy   string    `json:"reviewed_by"`
	EntityID     string    `json:"entity_id,omitempty"`
	At           time.Time `json:"at"`
}

func (s *SubmissionService) Create(ctx context.Context, userID string, in SubmissionInput) (*domain.Submission, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.BadRequest("name is required")
	}
	if !domain.ValidItemType(in.Type) {
		return nil, errs.BadRequest("type must be restaurant or dish")
	}
	if in.Type == domain.ItemTypeDish && in.RestaurantID == "" {
		return nil, errs.BadRequest("restaurant_id is required for dish submissions")
	}
	sub := &domain.Submission{
		UserID:       userID,
		Type:         in.Type,
		Name:         name,
		Location:     strings.TrimSpace(in.Location),
		City:         strings.TrimSpace(in.City),
		Neighborhood: strings.TrimSpace(in.Neighborhood),
		RestaurantID: in.RestaurantID,
		PlaceID:      strings.TrimSpace(in.PlaceID),
		Tags:         domain.NormalizeTags(in.Tags),
		Status:       domain.SubmissionPending,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubmissionService) Mine(ctx context.Context, userID string, p domain.Page) (domain.PageResult[domain.Submission], error) {
	rows, total, err := s.subs.ListByUser(ctx, userID, p)
	if err != nil {
		return domain.PageResult[domain.Submission]{}, err
	}
	return domain.NewPageResult(rows, total, p), nil
}

func (s *SubmissionService) List(ctx context.Context, status string, p domain.Page) (domain.PageResult[domain.Submission], error) {
	switch status {
	case "", domain.SubmissionPending, domain.SubmissionApproved, domain.SubmissionRejected:
	default:
		return domain.PageResult[domain.Submission]{}, errs.BadRequest("invalid status")
	}
	rows, total, err := s.subs.ListByStatus(ctx, status, p)
	if err != nil {
		return domain.PageResult[domain.Submission]{}, err
	}
	return domain.NewPageResult(rows, total, p), nil
}

// claim pending → status；已审核过返回 409
func (s *SubmissionService) claim(ctx context.Context, id, status, reviewer string) (*domain.Submission, error) {
	ok, err := s.subs.Review(ctx, id, status, reviewer)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errs.NotFound("submission not found")
	}
	if !ok {
		return nil, errs.Conflict("submission already " + sub.Status)
	}
	return sub, nil
}

// Approve 创建对应实体；创建失败时回滚为 pending
func (s *SubmissionService) Approve(ctx context.Context, id, reviewer string) (*domain.Submission, error) {
	sub, err := s.claim(ctx, id, domain.SubmissionApproved, reviewer)
	if err != nil {
		return nil, err
	}
	entityID, err := s.createEntity(ctx, sub)
	if err != nil {
		if rerr := s.subs.Reopen(ctx, id); rerr != nil {
			s.log.Error("reopen submission failed", zap.String("id", id), zap.Error(rerr))
		}
		return nil, err
	}
	if err := s.subs.SetCreatedEntity(ctx, id, entityID); err != nil {
		return nil, err
	}
	sub.CreatedEntityID = entityID
	s.emit(ctx, sub)
	return sub, nil
}

func (s *SubmissionService) Reject(ctx context.Context, id, reviewer string) (*domain.Submission, error) {
	sub, err := s.claim(ctx, id, domain.SubmissionRejected, reviewer)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sub)
	return sub, nil
}

func (s *SubmissionService) createEntity(ctx context.Context, sub *domain.Submission) (string, error) {
	if sub.Type == domain.ItemTypeDish {
		d, err := s.catalog.CreateDish(ctx, sub.UserID, DishInput{
			Name: sub.Name, RestaurantID: sub.RestaurantID, Hashtags: sub.Tags,
		})
		if err != nil {
			return "", err
		}
		return d.ID, nil
	}
	r, err := s.catalog.CreateRestaurant(ctx, sub.UserID, RestaurantInput{
		Name:          sub.Name,
		Address:       sub.Location,
		City:          sub.City,
		Neighborhood:  sub.Neighborhood,
		GooglePlaceID: sub.PlaceID,
		Hashtags:      sub.Tags,
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (s *SubmissionService) emit(ctx context.Context, sub *domain.Submission) {
	at := time.Now()
	if sub.ReviewedAt != nil {
		at = *sub.ReviewedAt
	}
	events.Emit(ctx, s.pub, s.log, events.SubjectSubmissionReviewed, reviewEvent{
		SubmissionID: sub.ID, Status: sub.Status, ReviewedBy: sub.ReviewedBy, EntityID: sub.CreatedEntityID, At: at,
	})
}
