// Package lifecycle implements the event status state machine and the
// per-status field mutability rules.
package lifecycle

import (
	"strings"
	"time"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

// Transition moves e to status to, or returns a StateError.
func Transition(e *model.Event, to model.EventStatus) error {
	if !e.Status.CanTransition(to) {
		return errs.State(errs.CodeInvalidTransition,
			"event %d cannot move from %s to %s", e.ID, e.Status, to)
	}
	e.Status = to
	return nil
}

// Publish validates a draft event and moves it to published.
func Publish(e *model.Event) error {
	if e.Status != model.EventDraft {
		return errs.State(errs.CodeInvalidTransition, "only draft events can be published, event is %s", e.Status)
	}
	if err := ValidatePublishable(e); err != nil {
		return err
	}
	return Transition(e, model.EventPublished)
}

// CloseRegistration moves a published event to ongoing.
func CloseRegistration(e *model.Event) error {
	return Transition(e, model.EventOngoing)
}

func Complete(e *model.Event) error {
	return Transition(e, model.EventCompleted)
}

func Cancel(e *model.Event) error {
	if e.Status.Terminal() {
		return errs.State(errs.CodeInvalidTransition, "event %d is already %s", e.ID, e.Status)
	}
	return Transition(e, model.EventCancelled)
}

// ValidatePublishable checks the fields an event needs before it goes live.
func ValidatePublishable(e *model.Event) error {
	if strings.TrimSpace(e.Name) == "" {
		return errs.Required("name")
	}
	if strings.TrimSpace(e.Description) == "" {
		return errs.Required("description")
	}
	switch e.Type {
	case model.EventNormal:
		if e.StartDate.IsZero() {
			return errs.Required("start_date")
		}
		if e.EndDate.IsZero() {
			return errs.Required("end_date")
		}
		if e.EndDate.Before(e.StartDate) {
			return errs.Validation("end_date", "end_date must not be before start_date")
		}
	case model.EventMerchandise:
		if e.Merchandise == nil || e.Merchandise.StockQuantity <= 0 {
			return errs.Validation("merchandise.stock_quantity", "merchandise events need a positive stock quantity")
		}
	}
	return ValidateShape(e)
}

// ValidateShape checks structural consistency that holds in every status.
func ValidateShape(e *model.Event) error {
	switch e.Type {
	case model.EventNormal:
		if e.Merchandise != nil {
			return errs.Validation("merchandise", "merchandise details are only allowed on Merchandise events")
		}
	case model.EventMerchandise:
		if e.Merchandise == nil {
			return errs.Required("merchandise")
		}
		if e.Merchandise.StockQuantity < 0 {
			return errs.Validation("merchandise.stock_quantity", "stock quantity cannot be negative")
		}
		if e.Merchandise.PurchaseLimitPerParticipant <= 0 {
			return errs.Validation("merchandise.purchase_limit_per_participant", "purchase limit must be positive")
		}
		seen := make(map[string]bool, len(e.Merchandise.Variants))
		for _, v := range e.Merchandise.Variants {
			if v.Name == "" || len(v.Options) == 0 {
				return errs.Validation("merchandise.variants", "variant needs a name and at least one option")
			}
			if seen[v.Name] {
				return errs.Validation("merchandise.variants", "duplicate variant %q", v.Name)
			}
			seen[v.Name] = true
		}
	default:
		return errs.Validation("type", "unknown event type %q", e.Type)
	}
	switch e.Eligibility {
	case model.EligibilityAll, model.EligibilityIIITOnly, model.EligibilityNonIIIT:
	default:
		return errs.Validation("eligibility", "unknown eligibility %q", e.Eligibility)
	}
	if e.RegistrationLimit != nil && *e.RegistrationLimit <= 0 {
		return errs.Validation("registration_limit", "registration limit must be positive")
	}
	if e.RegistrationFee < 0 {
		return errs.Validation("registration_fee", "registration fee cannot be negative")
	}
	names := make(map[string]bool, len(e.CustomForm))
	for _, f := range e.CustomForm {
		if f.Name == "" {
			return errs.Validation("custom_form", "form field needs a name")
		}
		if names[f.Name] {
			return errs.Validation("custom_form", "duplicate form field %q", f.Name)
		}
		names[f.Name] = true
		if f.Type.HasOptions() && len(f.Options) == 0 {
			return errs.Validation("custom_form", "form field %q needs options", f.Name)
		}
	}
	return nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name                   *string
	Description            *string
	Tags                   *[]string
	Type                   *model.EventType
	StartDate              *time.Time
	EndDate                *time.Time
	RegistrationDeadline   *time.Time
	RegistrationLimit      *int
	UnlimitedRegistrations bool
	RegistrationFee        *int64
	Eligibility            *model.Eligibility
	CustomForm             *[]model.FormField
	Merchandise            *model.MerchandiseDetails
}

func (p Patch) touchesLimit() bool {
	return p.RegistrationLimit != nil || p.UnlimitedRegistrations
}

// lockedWhenPublished lists the fields that may not change after publishing.
func (p Patch) lockedWhenPublished() string {
	switch {
	case p.Name != nil:
		return "name"
	case p.Type != nil:
		return "type"
	case p.StartDate != nil:
		return "start_date"
	case p.EndDate != nil:
		return "end_date"
	case p.RegistrationFee != nil:
		return "registration_fee"
	case p.Eligibility != nil:
		return "eligibility"
	case p.CustomForm != nil:
		return "custom_form"
	case p.Merchandise != nil:
		return "merchandise"
	}
	return ""
}

func (p Patch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Tags == nil && p.Type == nil &&
		p.StartDate == nil && p.EndDate == nil && p.RegistrationDeadline == nil &&
		!p.touchesLimit() && p.RegistrationFee == nil && p.Eligibility == nil &&
		p.CustomForm == nil && p.Merchandise == nil
}

// Apply enforces the mutability gate for e.Status and writes p into e.
func Apply(e *model.Event, p Patch) error {
	if p.RegistrationLimit != nil && p.UnlimitedRegistrations {
		return errs.Validation("registration_limit", "cannot set a limit and unlimited registrations together")
	}
	switch e.Status {
	case model.EventDraft:
		applyDraft(e, p)
		return ValidateShape(e)
	case model.EventPublished:
		if f := p.lockedWhenPublished(); f != "" {
			return errs.State(errs.CodeFieldLocked, "field '%s' cannot be changed after publishing", f)
		}
		return applyPublished(e, p)
	default:
		if p.empty() {
			return nil
		}
		return errs.State(errs.CodeFieldLocked, "event is %s, content is read-only", e.Status)
	}
}

func applyDraft(e *model.Event, p Patch) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Tags != nil {
		e.Tags = *p.Tags
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.RegistrationDeadline != nil {
		e.RegistrationDeadline = *p.RegistrationDeadline
	}
	if p.RegistrationLimit != nil {
		limit := *p.RegistrationLimit
		e.RegistrationLimit = &limit
	}
	if p.UnlimitedRegistrations {
		e.RegistrationLimit = nil
	}
	if p.RegistrationFee != nil {
		e.RegistrationFee = *p.RegistrationFee
	}
	if p.Eligibility != nil {
		e.Eligibility = *p.Eligibility
	}
	if p.CustomForm != nil {
		e.CustomForm = *p.CustomForm
	}
	if p.Merchandise != nil {
		m := *p.Merchandise
		e.Merchandise = &m
	}
}

func applyPublished(e *model.Event, p Patch) error {
	// A zero deadline means registration stays open, so any concrete
	// deadline would shorten it.
	if p.RegistrationDeadline != nil {
		if e.RegistrationDeadline.IsZero() || p.RegistrationDeadline.Before(e.RegistrationDeadline) {
			return errs.State(errs.CodeFieldLocked, "registration deadline can only be extended")
		}
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return errs.Required("description")
	}
	if p.RegistrationLimit != nil {
		if e.RegistrationLimit == nil || *p.RegistrationLimit < *e.RegistrationLimit {
			return errs.State(errs.CodeFieldLocked, "registration limit can only be increased")
		}
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Tags != nil {
		e.Tags = *p.Tags
	}
	if p.RegistrationDeadline != nil {
		e.RegistrationDeadline = *p.RegistrationDeadline
	}
	if p.RegistrationLimit != nil {
		limit := *p.RegistrationLimit
		e.RegistrationLimit = &limit
	}
	if p.UnlimitedRegistrations {
		e.RegistrationLimit = nil
	}
	return nil
}
