// Package events publishes capsule lifecycle events.
//
// Events are observability, not state: they are emitted after the owning
// transaction commits, and a publish failure never rolls anything back.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"timevault/pkg/domain"
)

// Type names a lifecycle transition.
type Type string

const (
	TypeProfileCreated       Type = "profile.created"
	TypeCapsuleCreated       Type = "capsule.created"
	TypeCapsuleUnlocked      Type = "capsule.unlocked"
	TypeCapsuleCancelled     Type = "capsule.cancelled"
	TypeCapsuleDeleted       Type = "capsule.deleted"
	TypeRecipientTransferred Type = "capsule.recipient_transferred"
)

// Event describes one committed transition.
type Event struct {
	ID      uuid.UUID      `json:"id"`
	Type    Type           `json:"type"`
	Capsule domain.Address `json:"capsule,omitempty"`
	Actor   domain.Address `json:"actor"`
	Amount  uint64         `json:"amount,omitempty"`
	At      time.Time      `json:"at"`
}

// New builds an event with a fresh ID.
func New(eventType Type, capsule, actor domain.Address, amount uint64, at time.Time) Event {
	return Event{
		ID:      uuid.New(),
		Type:    eventType,
		Capsule: capsule,
		Actor:   actor,
		Amount:  amount,
		At:      at.UTC(),
	}
}

// Publisher delivers lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
