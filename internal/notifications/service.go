package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hopper/internal/config"
)

const userAgent = "Hopper-Go/0.1.0"

// Event identifies a workflow milestone worth pushing to the user.
type Event string

const (
	// EventChainCompleted fires once every step of a file's chain has run.
	// Payload keys: file, steps, cost.
	EventChainCompleted Event = "chain_completed"
	// EventStepFailed fires when a job fails with a non-reviewable error.
	// Payload keys: file, parser, error.
	EventStepFailed Event = "step_failed"
	// EventReviewNeeded fires when a job or prediction is parked for a human.
	// Payload keys: file, parser, reason.
	EventReviewNeeded Event = "review_needed"
)

// Payload carries the event-specific fields used to format a notification.
type Payload map[string]string

// Service is the notification surface exposed to workflow components.
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
		enabled: map[Event]bool{
			EventChainCompleted: cfg.Notifications.ChainComplete,
			EventStepFailed:     cfg.Notifications.StepFailed,
			EventReviewNeeded:   cfg.Notifications.Review,
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

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if allowed, known := n.enabled[event]; known && !allowed {
		return nil
	}
	if data == nil {
		data = Payload{}
	}
	switch event {
	case EventChainCompleted:
		return n.send(ctx, chainCompletedPayload(data))
	case EventStepFailed:
		return n.send(ctx, stepFailedPayload(data))
	case EventReviewNeeded:
		return n.send(ctx, reviewNeededPayload(data))
	default:
		return fmt.Errorf("unknown notification event %q", event)
	}
}

func chainCompletedPayload(data Payload) payload {
	message := fmt.Sprintf("✅ Chain complete: %s", strings.TrimSpace(data["file"]))
	if steps := strings.TrimSpace(data["steps"]); steps != "" {
		message = fmt.Sprintf("%s (%s steps)", message, steps)
	}
	if cost := strings.TrimSpace(data["cost"]); cost != "" {
		message = fmt.Sprintf("%s\nEstimated cost: %s", message, cost)
	}
	return payload{
		title:    "Hopper - Chain Complete",
		message:  message,
		tags:     []string{"hopper", "chain", "completed"},
		priority: "high",
	}
}

func stepFailedPayload(data Payload) payload {
	parserName := strings.TrimSpace(data["parser"])
	if parserName == "" {
		parserName = "unknown"
	}

	var builder strings.Builder
	builder.WriteString("❌ Step failed: ")
	builder.WriteString(parserName)
	if file := strings.TrimSpace(data["file"]); file != "" {
		builder.WriteString(" on ")
		builder.WriteString(file)
	}
	if errText := strings.TrimSpace(data["error"]); errText != "" {
		builder.WriteString(": ")
		builder.WriteString(errText)
	}

	return payload{
		title:    "Hopper - Step Failed",
		message:  builder.String(),
		tags:     []string{"hopper", "step", "failed"},
		priority: "high",
	}
}

func reviewNeededPayload(data Payload) payload {
	subject := strings.TrimSpace(data["file"])
	if parserName := strings.TrimSpace(data["parser"]); parserName != "" {
		subject = fmt.Sprintf("%s on %s", parserName, subject)
	}
	message := fmt.Sprintf("Review needed: %s", subject)
	if reason := strings.TrimSpace(data["reason"]); reason != "" {
		message = fmt.Sprintf("%s\nReason: %s", message, reason)
	}
	return payload{
		title:   "Hopper - Review Needed",
		message: message,
		tags:    []string{"hopper", "review", "needed"},
	}
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
