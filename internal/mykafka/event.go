package mykafka

import "time"

const (
	EventUserRegistered    = "user_registered"
	EventSuperAdminCreated = "superadmin_created"
	EventUserDeleted       = "user_deleted"

	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordResetCompleted = "password_reset_completed"

	EventCategoryCreated = "category_created"
	EventCategoryUpdated = "category_updated"
	EventCategoryDeleted = "category_deleted"

	EventMedicineCreated = "medicine_created"
	EventMedicineUpdated = "medicine_updated"
	EventMedicineDeleted = "medicine_deleted"
)

// Event is the envelope written to every topic.
type Event struct {
	Type       string    `json:"type"`
	EntityID   uint      `json:"entity_id"`
	ActorID    uint      `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

func NewEvent(typ string, entityID, actorID uint, data any) Event {
	return Event{
		Type:       typ,
		EntityID:   entityID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
