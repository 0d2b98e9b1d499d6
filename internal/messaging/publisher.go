// Package messaging 通知事件外发（RabbitMQ fanout exchange），供推送服务消费。
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

const appID = "living-legends"

// Event 一条已落库通知的推送事件
type Event struct {
	NotificationID string                     `json:"notification_id"`
	RecipientID    string                     `json:"recipient_id"`
	StoryID        string                     `json:"story_id"`
	CommentID      string                     `json:"comment_id,omitempty"`
	Category       model.NotificationCategory `json:"category"`
	Type           model.NotificationType     `json:"type"`
	Content        string                     `json:"content"`
	CreatedAt      time.Time                  `json:"created_at"`
}

// FromNotifications 按通知构造事件
func FromNotifications(ns []model.Notification) []Event {
	out := make([]Event, len(ns))
	for i, n := range ns {
		e := Event{
			NotificationID: n.ID,
			RecipientID:    n.RecipientID,
			StoryID:        n.StoryID,
			Category:       n.Category,
			Type:           n.Type,
			Content:        n.Content,
			CreatedAt:      n.CreatedAt,
		}
		if n.CommentID != nil {
			e.CommentID = *n.CommentID
		}
		out[i] = e
	}
	return out
}

// Publisher 通知事件发布者；发布失败不影响已提交的通知
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
	Close() error
}

// Rabbit 发布到 durable fanout exchange
type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// DialRabbit 建立连接并声明 exchange
func DialRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare exchange %q: %w", exchange, err)
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Publish(ctx context.Context, events []Event) error {
	if r.ch == nil {
		return errors.New("rabbitmq channel not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// amqp.Channel 不支持并发发布
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, e := range events {
		body, err := json.Marshal(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.publishOne(ctx, e.NotificationID, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Rabbit) publishOne(ctx context.Context, id string, body []byte) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = r.ch.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        appID,
		})
		if err == nil {
			return nil
		}
		logger.Warn("publish notification event failed",
			zap.String("notification_id", id), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("publish %s to %s: %w", id, r.exchange, err)
}

func (r *Rabbit) Close() error {
	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}

// Nop 未启用消息队列时使用
type Nop struct{}

func (Nop) Publish(context.Context, []Event) error { return nil }
func (Nop) Close() error                           { return nil }

// Memory 记录发布的事件，用于本地调试与测试
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, events []Event) error {
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Events 返回已发布事件的副本
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
