package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"wms-budget/internal/domain"
)

// DefaultEventStream 预算事件的 Redis Stream
const DefaultEventStream = "wms:budget:events"

// StreamPublisher 预算事件发布到 Redis Streams（XADD）
type StreamPublisher struct {
	c      *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(c *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultEventStream
	}
	return &StreamPublisher{c: c, stream: stream, maxLen: 10000}
}

// Publish 写入 type / budget_id / data 三个字段，data 为事件 JSON
func (p *StreamPublisher) Publish(ctx context.Context, event domain.BudgetEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal budget event: %w", err)
	}
	err = p.c.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]interface{}{
			"type":      string(event.Type),
			"budget_id": event.BudgetID,
			"data":      string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}

// NopPublisher 事件关闭时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.BudgetEvent) error { return nil }
