package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is saved as a unit under optimistic locking and raises
// domain events that are published after a successful save
type AggregateRoot interface {
	Identity() uuid.UUID
	CurrentVersion() int
	PendingEvents() []DomainEvent
	PullEvents() []DomainEvent
}

// Aggregate is embedded by aggregate roots. Version starts at 1 and is
// compared against the stored row on every update.
type Aggregate struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	pending []DomainEvent
}

// NewAggregate returns a fresh identity stamped at
func NewAggregate(at time.Time) Aggregate {
	return Aggregate{ID: uuid.New(), CreatedAt: at, UpdatedAt: at, Version: 1}
}

// RestoreAggregate rebuilds persisted identity without pending events
func RestoreAggregate(id uuid.UUID, createdAt, updatedAt time.Time, version int) Aggregate {
	return Aggregate{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt, Version: version}
}

func (a *Aggregate) Identity() uuid.UUID { return a.ID }

func (a *Aggregate) CurrentVersion() int { return a.Version }

// BumpVersion advances the version by one
func (a *Aggregate) BumpVersion() { a.Version++ }

// Raise queues evt for publication
func (a *Aggregate) Raise(evt DomainEvent) {
	a.pending = append(a.pending, evt)
}

// PendingEvents returns a copy of the queued events
func (a *Aggregate) PendingEvents() []DomainEvent {
	return append([]DomainEvent(nil), a.pending...)
}

// PullEvents returns the queued events and empties the queue
func (a *Aggregate) PullEvents() []DomainEvent {
	out := a.pending
	a.pending = nil
	return out
}
