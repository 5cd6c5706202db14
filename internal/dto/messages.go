package dto

// Notification kinds carried on the message bus.
const (
	KindEventPublished        = "event.published"
	KindRegistrationCreated   = "registration.created"
	KindRegistrationConfirmed = "registration.confirmed"
	KindRegistrationCancelled = "registration.cancelled"
	KindRegistrationExpire    = "registration.expire"
	KindPaymentRejected       = "payment.rejected"
)

type NotificationMessage struct {
	Kind           string `json:"kind"`
	RegistrationID int64  `json:"registration_id,omitempty"`
	EventID        int64  `json:"event_id"`
	EventName      string `json:"event_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	TicketID       string `json:"ticket_id,omitempty"`
}
