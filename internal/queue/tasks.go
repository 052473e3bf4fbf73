package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeExportImage = "image:export"

// ExportImagePayload carries the session snapshot so edits made after
// enqueueing never leak into the pending export.
type ExportImagePayload struct {
	ExportID    string               `json:"export_id"`
	Session     domain.Session       `json:"session"`
	Options     domain.ExportOptions `json:"options"`
	WebhookURL  string               `json:"webhook_url,omitempty"`
	RequestedAt time.Time            `json:"requested_at"`
}

func NewExportImageTask(payload ExportImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportImage, body), nil
}

func ParseExportImagePayload(task *asynq.Task) (ExportImagePayload, error) {
	var payload ExportImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportImagePayload{}, fmt.Errorf("unmarshal export payload: %w", err)
	}
	if payload.ExportID == "" || payload.Session.ID == "" {
		return ExportImagePayload{}, fmt.Errorf("export payload missing export_id or session id")
	}
	return payload, nil
}
