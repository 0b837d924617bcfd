package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"doof/internal/core/errs"
	"doof/internal/core/metrics"
	"doof/internal/events"
)

var (
	engageItemTypes = map[string]bool{"restaurant": true, "dish": true, "list": true}
	engageTypes     = map[string]bool{"view": true, "click": true, "share": true, "add_to_list": true}
)

type EngageInput struct {
	ItemType       string `json:"item_type" binding:"required"`
	ItemID         string `json:"item_id" binding:"required"`
	EngagementType string `json:"engagement_type" binding:"required"`
}

type Engagement struct {
	ItemType       string    `json:"item_type"`
	ItemID         string    `json:"item_id"`
	EngagementType string    `json:"engagement_type"`
	UserID         string    `json:"user_id,omitempty"`
	At             time.Time `json:"at"`
}

type EngagementService struct {
	pub events.Publisher
	log *zap.Logger
	now func() time.Time
}

func NewEngagementService(pub events.Publisher, log *zap.Logger) *EngagementService {
	return &EngagementService{pub: pub, log: log, now: time.Now}
}

// Record 匿名用户 userID 为空
func (s *EngagementService) Record(ctx context.Context, userID string, in EngageInput) (*Engagement, error) {
	if !engageItemTypes[in.ItemType] {
		return nil, errs.BadRequest("item_type must be restaurant, dish or list")
	}
	if !engageTypes[in.EngagementType] {
		return nil, errs.BadRequest("engagement_type must be view, click, share or add_to_list")
	}
	if in.ItemID == "" {
		return nil, errs.BadRequest("item_id is required")
	}
	e := &Engagement{
		ItemType:       in.ItemType,
		ItemID:         in.ItemID,
		EngagementType: in.EngagementType,
		UserID:         userID,
		At:             s.now().UTC(),
	}
	metrics.Engagements.WithLabelValues(e.ItemType, e.EngagementType).Inc()
	events.Emit(ctx, s.pub, s.log, events.SubjectEngagement, e)
	return e, nil
}
