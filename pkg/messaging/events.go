package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Appointment events
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentCompleted = "appointment.completed"

	// Billing events
	EventInvoiceCreated   = "billing.invoice.created"
	EventInvoicePaid      = "billing.invoice.paid"
	EventInvoiceCancelled = "billing.invoice.cancelled"

	// Inventory events
	EventStockMoved = "inventory.stock.moved"
	EventStockLow   = "inventory.stock.low"

	// Patient events
	EventPatientCreated = "patient.created"

	// Audit events
	EventAuditLogCreated = "audit.log.created"
)

// ExchangeClinicEvents is the topic exchange all domain events are
// published to. Notification senders (email/SMS/WhatsApp) bind their own
// queues downstream.
const ExchangeClinicEvents = "clinic.events"

// Event is the base event structure
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	TenantID  string          `json:"tenant_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}
