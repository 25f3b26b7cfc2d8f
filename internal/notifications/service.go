package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tracktap/internal/config"
)

const userAgent = "tracktap/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries event-specific values.
type Payload struct {
	Title    string
	Total    int
	OK       int
	Skipped  int
	Failed   int
	Duration time.Duration
	Err      error
}

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, p Payload) (message, bool) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "untitled"
	}
	switch event {
	case EventRunStarted:
		noun := "tracks"
		if p.Total == 1 {
			noun = "track"
		}
		return message{
			title: "tracktap - Capture Started",
			body:  fmt.Sprintf("Recording %s (%d %s)", title, p.Total, noun),
			tags:  []string{"tracktap", "capture", "started"},
		}, true
	case EventRunCompleted:
		msg := message{
			title: "tracktap - Capture Complete",
			body: fmt.Sprintf("%s: %d recorded, %d skipped in %s",
				title, p.OK, p.Skipped, durationText(p.Duration)),
			tags: []string{"tracktap", "capture", "completed"},
		}
		if p.Failed > 0 {
			msg.title = "tracktap - Capture Complete (with errors)"
			msg.body = fmt.Sprintf("%s: %d recorded, %d skipped, %d failed in %s",
				title, p.OK, p.Skipped, p.Failed, durationText(p.Duration))
		}
		return msg, true
	case EventRunFailed:
		reason := "unknown"
		if p.Err != nil {
			reason = strings.TrimSpace(p.Err.Error())
		}
		return message{
			title:    "tracktap - Capture Failed",
			body:     fmt.Sprintf("Capture of %s stopped: %s", title, reason),
			tags:     []string{"tracktap", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "tracktap - Test",
			body:     "Notification system test",
			tags:     []string{"tracktap", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func durationText(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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
