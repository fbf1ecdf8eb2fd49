package appointment

import (
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/models"
)

// transitions lists, per non-terminal status, the statuses it may move to.
// Terminal statuses have no entry.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusPending: {
		models.StatusConfirmed,
		models.StatusCancelled,
		models.StatusCompleted,
		models.StatusNoShow,
	},
	models.StatusConfirmed: {
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusNoShow,
	},
}

// CanTransition reports whether an appointment in status from may move to to.
func CanTransition(from, to models.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorStaff    ActorKind = "staff"
	ActorSystem   ActorKind = "system"
)

// Actor is whoever asks for a lifecycle operation. ID is the customer id for
// customers and the user id for staff.
type Actor struct {
	Kind ActorKind
	ID   uuid.UUID
}

func Customer(id uuid.UUID) Actor { return Actor{Kind: ActorCustomer, ID: id} }

func Staff(id uuid.UUID) Actor { return Actor{Kind: ActorStaff, ID: id} }

// System is the actor of batch jobs.
var System = Actor{Kind: ActorSystem}

func (a Actor) IsCustomer() bool { return a.Kind == ActorCustomer }
