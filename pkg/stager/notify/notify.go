// Package notify delivers task completion callbacks to the clients that
// submitted the tasks.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/models"
)

// TaskNotification is sent once per task when it reaches a terminal status.
type TaskNotification struct {
	TaskID       string              `json:"task_id"`
	Source       string              `json:"source"`
	CallbackID   string              `json:"callback_id"`
	SourceTaskID *string             `json:"source_task_id,omitempty"`
	Status       models.TaskStatus   `json:"status"`
	Summary      *models.TaskSummary `json:"summary,omitempty"`
	Time         time.Time           `json:"time"`
}

// Notifier delivers task notifications.
type Notifier interface {
	// Type returns the notifier type name.
	Type() string

	// Notify delivers n. A returned error means the caller should retry later.
	Notify(ctx context.Context, n TaskNotification) error
}

// Config selects and configures a notifier.
type Config struct {
	// Type is "log" or "webhook".
	Type    string        `mapstructure:"type" validate:"omitempty,oneof=log webhook" yaml:"type"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// New creates the notifier selected by config. An empty type selects the
// log notifier.
func New(config Config) (Notifier, error) {
	switch config.Type {
	case "", "log":
		return NewLogNotifier(), nil
	case "webhook":
		return NewWebhookNotifier(config.Webhook)
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", config.Type)
	}
}

// LogNotifier writes notifications to the structured log. It never fails.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (*LogNotifier) Type() string { return "log" }

func (*LogNotifier) Notify(ctx context.Context, n TaskNotification) error {
	logger.InfoCtx(ctx, "Task finished",
		logger.KeyTaskID, n.TaskID,
		logger.KeySource, n.Source,
		logger.KeyCallbackID, n.CallbackID,
		logger.KeyStatus, n.Status)
	return nil
}
