package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"shortforge/internal/config"
)

const (
	userAgent       = "shortforge/0.1.0"
	defaultNtfyBase = "https://ntfy.sh/"
)

// Event identifies a batch milestone worth telling a human about.
type Event string

const (
	EventBatchStarted   Event = "batch_started"
	EventBatchCompleted Event = "batch_completed"
	EventItemFailed     Event = "item_failed"
	EventTest           Event = "test"
)

// Payload carries event-specific values. Keys are documented per event in
// the message builders below.
type Payload map[string]any

// Service publishes batch events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed notifier. When no topic is configured a
// no-op implementation is returned. A bare topic name is published to
// ntfy.sh; a full URL is used as-is.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	endpoint := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		endpoint = defaultNtfyBase + strings.TrimPrefix(topic, "/")
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetDisableWarn(true)

	return &ntfyService{
		endpoint: endpoint,
		client:   client,
		enabled: map[Event]bool{
			EventBatchStarted:   cfg.Notifications.BatchStarted,
			EventBatchCompleted: cfg.Notifications.BatchCompleted,
			EventItemFailed:     cfg.Notifications.ItemFailures,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *resty.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := build(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func build(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBatchStarted:
		return message{
			title: "shortforge - Batch Started",
			body:  fmt.Sprintf("Started batch %s with %d items", payloadString(payload, "runID"), payloadInt(payload, "count")),
			tags:  []string{"shortforge", "batch", "started"},
		}, true
	case EventBatchCompleted:
		succeeded := payloadInt(payload, "succeeded")
		failed := payloadInt(payload, "failed")
		duration := payloadDuration(payload, "duration")
		if failed == 0 {
			return message{
				title: "shortforge - Batch Complete",
				body:  fmt.Sprintf("✅ %d videos ready in %s", succeeded, duration),
				tags:  []string{"shortforge", "batch", "completed"},
			}, true
		}
		return message{
			title: "shortforge - Batch Complete (with errors)",
			body:  fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", succeeded, failed, duration),
			tags:  []string{"shortforge", "batch", "completed"},
		}, true
	case EventItemFailed:
		return message{
			title:    "shortforge - Item Failed",
			body:     fmt.Sprintf("❌ %s failed at %s: %s", payloadString(payload, "inferenceID"), payloadString(payload, "stage"), payloadString(payload, "error")),
			tags:     []string{"shortforge", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "shortforge - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"shortforge", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(data.body)
	if data.title != "" {
		req.SetHeader("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.SetHeader("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.SetHeader("Priority", data.priority)
	}

	resp, err := req.Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.StatusCode() >= 300 {
		body := strings.TrimSpace(resp.String())
		if len(body) > 2048 {
			body = body[:2048]
		}
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), body)
	}
	return nil
}

func payloadString(p Payload, key string) string {
	switch v := p[key].(type) {
	case nil:
		return "unknown"
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return "unknown"
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return fmt.Sprint(v)
	}
}

func payloadInt(p Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func payloadDuration(p Payload, key string) string {
	d, _ := p[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
