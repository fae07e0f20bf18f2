package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"platter/internal/config"
)

const userAgent = "platter/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
		enabled:  cfg.Notifications,
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
	enabled  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.eventEnabled(event) {
		return nil
	}
	data, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) eventEnabled(event Event) bool {
	switch event {
	case EventDiscDetected, EventIdentificationCompleted:
		return n.enabled.Identification
	case EventRipStarted, EventRipCompleted:
		return n.enabled.Rip
	case EventEncodingCompleted:
		return n.enabled.Encoding
	case EventOrganizationCompleted, EventProcessingCompleted:
		return n.enabled.Organization
	case EventQueueStarted, EventQueueCompleted:
		return n.enabled.Queue
	case EventReviewRequired:
		return n.enabled.Review
	case EventError:
		return n.enabled.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}
	switch event {
	case EventDiscDetected:
		title := get("discTitle")
		if title == "" {
			title = "Unknown Disc"
		}
		return message{
			title: "Platter - Disc Detected",
			body:  fmt.Sprintf("Disc detected: %s", title),
			tags:  []string{"platter", "disc", "detected"},
		}, true
	case EventIdentificationCompleted:
		label := get("album")
		if artist := get("artist"); artist != "" {
			label = fmt.Sprintf("%s - %s", artist, label)
		}
		return message{
			title: "Platter - Identified",
			body:  fmt.Sprintf("Identified: %s", label),
			tags:  []string{"platter", "identify", "completed"},
		}, true
	case EventRipStarted:
		return message{
			title: "Platter - Rip Started",
			body:  fmt.Sprintf("Started ripping: %s", get("discTitle")),
			tags:  []string{"platter", "rip", "started"},
		}, true
	case EventRipCompleted:
		body := fmt.Sprintf("Rip complete: %s", get("discTitle"))
		if tracks := get("tracks"); tracks != "" {
			body = fmt.Sprintf("%s (%s tracks)", body, tracks)
		}
		return message{
			title: "Platter - Rip Complete",
			body:  body,
			tags:  []string{"platter", "rip", "completed"},
		}, true
	case EventEncodingCompleted:
		return message{
			title: "Platter - Encoded",
			body:  fmt.Sprintf("Encoding complete: %s", get("discTitle")),
			tags:  []string{"platter", "encode", "completed"},
		}, true
	case EventOrganizationCompleted:
		body := fmt.Sprintf("Added to library: %s", get("album"))
		if dir := get("finalDir"); dir != "" {
			body = fmt.Sprintf("%s\nLocation: %s", body, dir)
		}
		return message{
			title: "Platter - Library Updated",
			body:  body,
			tags:  []string{"platter", "library", "added"},
		}, true
	case EventProcessingCompleted:
		return message{
			title:    "Platter - Complete",
			body:     fmt.Sprintf("Ready to listen: %s", get("album")),
			tags:     []string{"platter", "workflow", "completed"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return message{
			title: "Platter - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %s items", get("count")),
			tags:  []string{"platter", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return message{
			title: "Platter - Queue Complete",
			body:  fmt.Sprintf("Queue processing complete: %s processed, %s failed", get("processed"), get("failed")),
			tags:  []string{"platter", "queue", "completed"},
		}, true
	case EventReviewRequired:
		label := get("label")
		if label == "" {
			label = "Unidentified Disc"
		}
		body := fmt.Sprintf("Could not process: %s\nManual review required", label)
		if reason := get("reason"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title: "Platter - Review Required",
			body:  body,
			tags:  []string{"platter", "review"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if contextLabel := get("context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if detail := get("error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Platter - Error",
			body:     builder.String(),
			tags:     []string{"platter", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Platter - Test",
			body:     "Notification system test",
			tags:     []string{"platter", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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
