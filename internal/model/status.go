package model

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

var eventTransitions = map[EventStatus][]EventStatus{
	EventDraft:     {EventPublished, EventCancelled},
	EventPublished: {EventOngoing, EventCancelled},
	EventOngoing:   {EventCompleted, EventCancelled},
}

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

func (s EventStatus) Terminal() bool {
	return s == EventCompleted || s == EventCancelled
}

// CanTransition reports whether s -> to is a legal lifecycle step.
func (s EventStatus) CanTransition(to EventStatus) bool {
	for _, next := range eventTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationRejected  RegistrationStatus = "rejected"
)

var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationPending:   {RegistrationConfirmed, RegistrationCancelled, RegistrationRejected},
	RegistrationConfirmed: {RegistrationCancelled},
}

// Active reports whether the registration still holds capacity.
func (s RegistrationStatus) Active() bool {
	return s == RegistrationPending || s == RegistrationConfirmed
}

func (s RegistrationStatus) CanTransition(to RegistrationStatus) bool {
	for _, next := range registrationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentNotApplicable PaymentStatus = "not_applicable"
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRejected      PaymentStatus = "rejected"
)

type ProofStatus string

const (
	ProofNone     ProofStatus = "none"
	ProofPending  ProofStatus = "pending"
	ProofApproved ProofStatus = "approved"
	ProofRejected ProofStatus = "rejected"
)

// AcceptsUpload reports whether a new proof may replace the current one.
func (s ProofStatus) AcceptsUpload() bool {
	return s != ProofApproved
}

// Expirable reports whether a pending registration with this proof status
// may be reclaimed by the payment timeout sweep.
func (s ProofStatus) Expirable() bool {
	return s == ProofNone || s == ProofRejected
}
