package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaflow/internal/config"
)

const userAgent = "Mediaflow-Go/0.1.0"

// Event identifies a notification-worthy workflow milestone.
type Event string

const (
	EventWorkflowCompleted Event = "workflow_completed"
	EventWorkflowFailed    Event = "workflow_failed"
	EventItemFailed        Event = "item_failed"
	EventTest              Event = "test"
)

// Payload carries event-specific values. Unknown keys are ignored.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventWorkflowCompleted: cfg.Notifications.WorkflowCompleted,
			EventWorkflowFailed:    cfg.Notifications.WorkflowFailed,
			EventItemFailed:        cfg.Notifications.ItemFailed,
			EventTest:              true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, p Payload) (payload, bool) {
	name := p.stringValue("workflow")
	if name == "" {
		name = fmt.Sprintf("execution %d", p.intValue("executionID"))
	}
	switch event {
	case EventWorkflowCompleted:
		processed := p.intValue("processed")
		total := p.intValue("total")
		message := fmt.Sprintf("✅ %s finished: %d of %d videos processed", name, processed, total)
		if d := p.durationValue("duration"); d > 0 {
			message = fmt.Sprintf("%s in %s", message, d.Round(time.Second))
		}
		return payload{
			title:   "Mediaflow - Workflow Complete",
			message: message,
			tags:    []string{"mediaflow", "workflow", "completed"},
		}, true
	case EventWorkflowFailed:
		reason := p.stringValue("error")
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "Mediaflow - Workflow Failed",
			message:  fmt.Sprintf("❌ %s failed: %s", name, reason),
			tags:     []string{"mediaflow", "workflow", "error"},
			priority: "high",
		}, true
	case EventItemFailed:
		title := p.stringValue("title")
		if title == "" {
			title = "unknown video"
		}
		message := fmt.Sprintf("⚠️ %s: could not process %s", name, title)
		if reason := p.stringValue("error"); reason != "" {
			message = fmt.Sprintf("%s\n%s", message, reason)
		}
		return payload{
			title:   "Mediaflow - Video Failed",
			message: message,
			tags:    []string{"mediaflow", "video", "failed"},
		}, true
	case EventTest:
		return payload{
			title:    "Mediaflow - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"mediaflow", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (p Payload) stringValue(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (p Payload) intValue(key string) int64 {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		return 0
	}
}

func (p Payload) durationValue(key string) time.Duration {
	if p == nil {
		return 0
	}
	if d, ok := p[key].(time.Duration); ok && d > 0 {
		return d
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
