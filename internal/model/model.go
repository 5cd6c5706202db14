package model

import "time"

type EventType string

const (
	EventNormal      EventType = "Normal"
	EventMerchandise EventType = "Merchandise"
)

type Eligibility string

const (
	EligibilityAll      Eligibility = "All"
	EligibilityIIITOnly Eligibility = "IIITOnly"
	EligibilityNonIIIT  Eligibility = "NonIIITOnly"
)

type ParticipantType string

const (
	ParticipantIIIT    ParticipantType = "IIIT"
	ParticipantNonIIIT ParticipantType = "NonIIIT"
)

// Allows reports whether a participant of type pt may register.
func (e Eligibility) Allows(pt ParticipantType) bool {
	switch e {
	case EligibilityIIITOnly:
		return pt == ParticipantIIIT
	case EligibilityNonIIIT:
		return pt == ParticipantNonIIIT
	default:
		return true
	}
}

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldDropdown FieldType = "dropdown"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
)

// HasOptions reports whether values of this type are drawn from Options.
func (t FieldType) HasOptions() bool {
	return t == FieldDropdown || t == FieldRadio || t == FieldCheckbox
}

type FormField struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

type Variant struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

type MerchandiseDetails struct {
	StockQuantity               int       `json:"stock_quantity"`
	PurchaseLimitPerParticipant int       `json:"purchase_limit_per_participant"`
	Variants                    []Variant `json:"variants,omitempty"`
}

type Event struct {
	ID                   int64               `db:"id" json:"id"`
	OrganizerID          string              `db:"organizer_id" json:"organizer_id"`
	Name                 string              `db:"name" json:"name"`
	Description          string              `db:"description" json:"description,omitempty"`
	Tags                 []string            `db:"tags" json:"tags,omitempty"`
	Type                 EventType           `db:"type" json:"type"`
	Status               EventStatus         `db:"status" json:"status"`
	StartDate            time.Time           `db:"start_date" json:"start_date"`
	EndDate              time.Time           `db:"end_date" json:"end_date"`
	RegistrationDeadline time.Time           `db:"registration_deadline" json:"registration_deadline"`
	RegistrationLimit    *int                `db:"registration_limit" json:"registration_limit,omitempty"`
	RegistrationFee      int64               `db:"registration_fee" json:"registration_fee"`
	Eligibility          Eligibility         `db:"eligibility" json:"eligibility"`
	CustomForm           []FormField         `db:"custom_form" json:"custom_form,omitempty"`
	Merchandise          *MerchandiseDetails `db:"merchandise" json:"merchandise,omitempty"`
	CurrentRegistrations int                 `db:"current_registrations" json:"current_registrations"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updated_at"`
}

// IsMerchandise reports whether registrations carry a merchandise order.
func (e *Event) IsMerchandise() bool {
	return e.Type == EventMerchandise
}

// HasLimit reports whether registrations are capped.
func (e *Event) HasLimit() bool {
	return e.RegistrationLimit != nil
}

// DeadlinePassed reports whether now is after the registration deadline.
// A zero deadline never passes.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return !e.RegistrationDeadline.IsZero() && now.After(e.RegistrationDeadline)
}

// FormField returns the schema entry named name.
func (e *Event) FormField(name string) (FormField, bool) {
	for _, f := range e.CustomForm {
		if f.Name == name {
			return f, true
		}
	}
	return FormField{}, false
}

type MerchandiseOrder struct {
	SelectedVariants map[string]string `json:"selected_variants,omitempty"`
	Quantity         int               `json:"quantity"`
}

type Registration struct {
	ID                 int64              `db:"id" json:"id"`
	EventID            int64              `db:"event_id" json:"event_id"`
	ParticipantID      string             `db:"participant_id" json:"participant_id"`
	ParticipantName    string             `db:"participant_name" json:"participant_name,omitempty"`
	ParticipantEmail   string             `db:"participant_email" json:"participant_email,omitempty"`
	Status             RegistrationStatus `db:"status" json:"status"`
	PaymentStatus      PaymentStatus      `db:"payment_status" json:"payment_status"`
	PaymentProof       string             `db:"payment_proof" json:"payment_proof,omitempty"`
	PaymentProofStatus ProofStatus        `db:"payment_proof_status" json:"payment_proof_status"`
	Amount             int64              `db:"amount" json:"amount"`
	CustomFormData     map[string]any     `db:"custom_form_data" json:"custom_form_data,omitempty"`
	MerchandiseOrder   *MerchandiseOrder  `db:"merchandise_order" json:"merchandise_order,omitempty"`
	TicketID           string             `db:"ticket_id" json:"ticket_id,omitempty"`
	Attended           bool               `db:"attended" json:"attended"`
	AttendanceMarkedAt *time.Time         `db:"attendance_marked_at" json:"attendance_marked_at,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Quantity is the merchandise quantity, or zero for normal registrations.
func (r *Registration) Quantity() int {
	if r.MerchandiseOrder == nil {
		return 0
	}
	return r.MerchandiseOrder.Quantity
}

type Ticket struct {
	ID             string    `db:"id" json:"ticket_id"`
	RegistrationID int64     `db:"registration_id" json:"registration_id"`
	EventID        int64     `db:"event_id" json:"event_id"`
	QRPayload      string    `db:"qr_payload" json:"qr_payload"`
	IssuedAt       time.Time `db:"issued_at" json:"issued_at"`
}

type AttendanceAudit struct {
	ID             int64     `db:"id" json:"id"`
	RegistrationID int64     `db:"registration_id" json:"registration_id"`
	Attended       bool      `db:"attended" json:"attended"`
	Reason         string    `db:"reason" json:"reason"`
	ActorID        string    `db:"actor_id" json:"actor_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type Role string

const (
	RoleParticipant Role = "participant"
	RoleOrganizer   Role = "organizer"
	RoleAdmin       Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID              string
	Role            Role
	ParticipantType ParticipantType
	Name            string
	Email           string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether a is the organizer of e or an admin.
func (a Actor) Owns(e *Event) bool {
	return a.IsAdmin() || (a.Role == RoleOrganizer && a.ID == e.OrganizerID)
}
