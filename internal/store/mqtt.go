package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"wms-budget/internal/domain"
)

// MQTTConfig MQTT 事件发布配置
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // 如 "wms/budget"，实际主题为 <prefix>/<event type>
	QoS         byte
}

// MQTTPublisher 预算事件发布到 MQTT
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher 连接 broker 并创建发布者
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return NewMQTTPublisherWithClient(client, cfg.TopicPrefix, cfg.QoS), nil
}

// NewMQTTPublisherWithClient 使用已连接的 client
func NewMQTTPublisherWithClient(client mqtt.Client, topicPrefix string, qos byte) *MQTTPublisher {
	if topicPrefix == "" {
		topicPrefix = "wms/budget"
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.TrimSuffix(topicPrefix, "/"),
		qos:     qos,
		timeout: 5 * time.Second,
	}
}

// Topic 事件对应的主题，budget.lock_changed -> <prefix>/lock_changed
func (p *MQTTPublisher) Topic(eventType domain.BudgetEventType) string {
	return p.prefix + "/" + strings.TrimPrefix(string(eventType), "budget.")
}

func (p *MQTTPublisher) Publish(ctx context.Context, event domain.BudgetEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal budget event: %w", err)
	}
	topic := p.Topic(event.Type)
	token := p.client.Publish(topic, p.qos, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Close 断开连接
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
