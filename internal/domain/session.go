package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoImage       = errors.New("no image loaded")
	ErrInvalidTarget = errors.New("invalid target dimensions")
)

type SourceRef struct {
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	Format      string `json:"format"`
}

type Session struct {
	ID        string     `json:"id"`
	State     State      `json:"state"`
	Source    *SourceRef `json:"source,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewSession(id string, now time.Time) Session {
	return Session{
		ID:        id,
		State:     NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Exportable reports why a snapshot cannot be rendered, if it cannot.
func (s Session) Exportable() error {
	if !s.State.Loaded || s.Source == nil || strings.TrimSpace(s.Source.ObjectKey) == "" {
		return ErrNoImage
	}
	if !s.State.Target.Positive() {
		return fmt.Errorf("%w: %s must be at least 1x1", ErrInvalidTarget, s.State.Target)
	}
	return nil
}

type ExportRecord struct {
	ID          string
	SessionID   string
	Format      OutputFormat
	Quality     int
	Width       int
	Height      int
	SourceBytes int
	OutputBytes int
	ObjectKey   string
	ComputeTime time.Duration
	CreatedAt   time.Time
}
