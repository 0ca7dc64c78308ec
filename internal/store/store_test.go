package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-budget/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisKV_GetSet(t *testing.T) {
	mr, client := newTestRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "rate:TWD", "0.031", time.Minute))
	v, err := kv.Get(ctx, "rate:TWD")
	require.NoError(t, err)
	assert.Equal(t, "0.031", v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "rate:TWD")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStreamPublisher_Publish(t *testing.T) {
	mr, client := newTestRedis(t)
	p := NewStreamPublisher(client, "")

	event := domain.BudgetEvent{
		Type:           domain.EventBudgetLockChanged,
		BudgetID:       "b1",
		BudgetType:     domain.BudgetTypePilot,
		IsLock:         true,
		ExtraBudgetIDs: []string{"e1", "e2"},
		Actor:          "ll.admin",
	}
	require.NoError(t, p.Publish(context.Background(), event))

	entries, err := client.XRange(context.Background(), DefaultEventStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "budget.lock_changed", entries[0].Values["type"])
	assert.Equal(t, "b1", entries[0].Values["budget_id"])

	var decoded domain.BudgetEvent
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &decoded))
	assert.Equal(t, []string{"e1", "e2"}, decoded.ExtraBudgetIDs)
	assert.True(t, decoded.IsLock)

	mr.Close()
	assert.Error(t, p.Publish(context.Background(), event))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), domain.BudgetEvent{}))
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeMQTTClient 只实现 Publish / Disconnect，其余方法不会被调用
type fakeMQTTClient struct {
	mqtt.Client
	err          error
	messages     []published
	disconnected bool
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func (c *fakeMQTTClient) Disconnect(uint) { c.disconnected = true }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeMQTTClient{}
	p := NewMQTTPublisherWithClient(client, "wms/budget/", 1)

	err := p.Publish(context.Background(), domain.BudgetEvent{Type: domain.EventBudgetDemandResynced, BudgetID: "b1"})
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "wms/budget/demand_resynced", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var decoded domain.BudgetEvent
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "b1", decoded.BudgetID)

	p.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeMQTTClient{err: errors.New("not connected")}
	p := NewMQTTPublisherWithClient(client, "", 0)

	err := p.Publish(context.Background(), domain.BudgetEvent{Type: domain.EventBudgetDeleted})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "wms/budget/deleted")
}
