// Package events fans appointment changes out to every server instance
// through Redis pub/sub, one channel per project.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/models"
)

const (
	TypeCreated       = "appointment.created"
	TypeStatusChanged = "appointment.status_changed"
)

// Event is the JSON document published for every appointment write.
type Event struct {
	Type        string             `json:"type"`
	ProjectID   uuid.UUID          `json:"project_id"`
	Appointment models.Appointment `json:"appointment"`
	From        string             `json:"from,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// Channel is the pub/sub channel carrying one project's appointment events.
func Channel(projectID uuid.UUID) string {
	return fmt.Sprintf("meetlines:project:%s:appointments", projectID)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscription delivers raw event payloads until Close is called.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, projectID uuid.UUID) (Subscription, error)
}

func encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}
