package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectEngagement         = "engagement"
	SubjectListItemAdded      = "list.item_added"
	SubjectListFollowed       = "list.followed"
	SubjectSubmissionReviewed = "submission.reviewed"
)

// Publisher 事件发布；失败只记日志，不影响请求
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
	Close()
}

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATS 连接 NATS；断线自动重连
func NewNATS(url, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("doof"),
		nats.Timeout(3*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, v any) error {
	if p.nc == nil || p.nc.IsClosed() {
		return nats.ErrConnectionClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject(subject), b)
}

func (p *NATSPublisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		_ = p.nc.Drain()
	}
}

// LogPublisher 未配置 NATS 时使用：事件只写 debug 日志
type LogPublisher struct{ Log *zap.Logger }

func (p LogPublisher) Publish(_ context.Context, subject string, v any) error {
	p.Log.Debug("event", zap.String("subject", subject), zap.Any("payload", v))
	return nil
}

func (LogPublisher) Close() {}

// Emit 发布并吞掉错误
func Emit(ctx context.Context, p Publisher, log *zap.Logger, subject string, v any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, v); err != nil {
		log.Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}
