package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/ledger"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
	"github.com/Imking640/Felicity-Event-Booking-sub000/pkg/validator"
)

type RegisterInput struct {
	EventID          int64
	CustomFormData   map[string]any
	MerchandiseOrder *model.MerchandiseOrder
}

// Register runs the registration preconditions in order and either creates
// a registration holding its reservations or leaves every counter untouched.
func (s *service) Register(ctx context.Context, actor model.Actor, in RegisterInput) (*model.Registration, error) {
	if actor.Role != model.RoleParticipant {
		return nil, errs.Forbidden("only participants can register for events")
	}

	e, err := s.loadEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EventPublished {
		return nil, errs.State(errs.CodeRegistrationClosed, "event is %s, registration is closed", e.Status)
	}
	if e.DeadlinePassed(s.now()) {
		return nil, errs.State(errs.CodeRegistrationClosed, "registration deadline has passed")
	}
	if !e.Eligibility.Allows(actor.ParticipantType) {
		err := errs.Forbidden("event is open to %s participants only", e.Eligibility)
		err.Code = errs.CodeNotEligible
		return nil, err
	}
	if !e.IsMerchandise() {
		_, err := s.repo.GetActiveRegistration(ctx, e.ID, actor.ID)
		switch {
		case err == nil:
			return nil, errs.Duplicate("already registered for this event")
		case !errors.Is(err, repo.ErrRegistrationNotFound):
			return nil, translate(err)
		}
	}
	if err := validateForm(e, in.CustomFormData); err != nil {
		return nil, err
	}

	res, err := s.ledger.ReserveSeat(ctx, e, actor.ID)
	if err != nil {
		return nil, err
	}
	quantity := 0
	if e.IsMerchandise() {
		if err := validateOrder(e, in.MerchandiseOrder); err != nil {
			res.Release(ctx)
			return nil, err
		}
		quantity = in.MerchandiseOrder.Quantity
		if err := res.ReserveStock(ctx, quantity, e.Merchandise.PurchaseLimitPerParticipant); err != nil {
			res.Release(ctx)
			return nil, err
		}
	}

	reg := &model.Registration{
		EventID:            e.ID,
		ParticipantID:      actor.ID,
		ParticipantName:    actor.Name,
		ParticipantEmail:   actor.Email,
		Status:             model.RegistrationPending,
		PaymentStatus:      model.PaymentPending,
		PaymentProofStatus: model.ProofNone,
		Amount:             e.RegistrationFee,
		CustomFormData:     in.CustomFormData,
	}
	if e.IsMerchandise() {
		reg.MerchandiseOrder = in.MerchandiseOrder
		reg.Amount = e.RegistrationFee * int64(quantity)
	}
	if e.RegistrationFee == 0 {
		reg.PaymentStatus = model.PaymentNotApplicable
	}

	id, err := s.repo.CreateRegistration(ctx, reg)
	if err != nil {
		res.Release(ctx)
		s.log.Error().Err(err).Int64("event_id", e.ID).Msg("failed to create registration")
		return nil, translate(err)
	}
	reg.ID = id
	s.log.Info().Int64("registration_id", id).Int64("event_id", e.ID).Str("participant_id", actor.ID).
		Msg("registration created")

	if e.RegistrationFee == 0 {
		confirmed, err := s.confirmFree(ctx, reg, res)
		if err != nil {
			return nil, err
		}
		s.notify(registrationMessage(dto.KindRegistrationConfirmed, e, confirmed), 0)
		return confirmed, nil
	}

	s.notify(registrationMessage(dto.KindRegistrationCreated, e, reg), 0)
	if s.paymentTimeout > 0 {
		s.notify(registrationMessage(dto.KindRegistrationExpire, e, reg), s.paymentTimeout)
	}
	return s.loadRegistration(ctx, id)
}

// confirmFree auto-confirms a free registration and issues its ticket. On
// failure the registration is cancelled and its reservations returned.
func (s *service) confirmFree(ctx context.Context, reg *model.Registration, res *ledger.Reservation) (*model.Registration, error) {
	confirmed, err := s.repo.ConfirmRegistrationTx(ctx, reg.ID)
	if err == nil {
		var t *model.Ticket
		t, err = s.issuer.Issue(ctx, confirmed)
		if err == nil {
			confirmed.TicketID = t.ID
			return confirmed, nil
		}
	}

	s.log.Error().Err(err).Int64("registration_id", reg.ID).Msg("auto-confirmation failed, rolling back registration")
	if _, cerr := s.repo.CancelRegistrationTx(ctx, reg.ID); cerr != nil {
		s.log.Error().Err(cerr).Int64("registration_id", reg.ID).Msg("failed to cancel registration after failed confirmation")
	}
	res.Release(ctx)
	return nil, translate(err)
}

func validateForm(e *model.Event, data map[string]any) error {
	for _, f := range e.CustomForm {
		v, ok := data[f.Name]
		if !ok || isEmpty(v) {
			if f.Required {
				return errs.Required(f.Name)
			}
			continue
		}
		if err := validateValue(f, v); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := e.FormField(k); !ok {
			return errs.Validation(k, "unknown form field '%s'", k)
		}
	}
	return nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}

func validateValue(f model.FormField, v any) error {
	switch f.Type {
	case model.FieldCheckbox:
		values, ok := stringList(v)
		if !ok {
			return errs.Validation(f.Name, "field '%s' must be a list of options", f.Name)
		}
		for _, val := range values {
			if !contains(f.Options, val) {
				return errs.Validation(f.Name, "'%s' is not an option of field '%s'", val, f.Name)
			}
		}
	case model.FieldDropdown, model.FieldRadio:
		val, ok := v.(string)
		if !ok || !contains(f.Options, val) {
			return errs.Validation(f.Name, "field '%s' must be one of %s", f.Name, strings.Join(f.Options, ", "))
		}
	case model.FieldNumber:
		if !isNumber(v) {
			return errs.Validation(f.Name, "field '%s' must be a number", f.Name)
		}
	case model.FieldEmail:
		val, ok := v.(string)
		if !ok || validator.Var(val, "email") != nil {
			return errs.Validation(f.Name, "field '%s' must be an email address", f.Name)
		}
	default:
		if _, ok := v.(string); !ok {
			return errs.Validation(f.Name, "field '%s' must be text", f.Name)
		}
	}
	return nil
}

func stringList(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func isNumber(v any) bool {
	switch val := v.(type) {
	case float64, float32, int, int64, int32:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return err == nil
	case fmt.Stringer:
		_, err := strconv.ParseFloat(val.String(), 64)
		return err == nil
	}
	return false
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func validateOrder(e *model.Event, order *model.MerchandiseOrder) error {
	if order == nil {
		return errs.Required("merchandise_order")
	}
	limit := e.Merchandise.PurchaseLimitPerParticipant
	if order.Quantity < 1 || order.Quantity > limit {
		return errs.Validation("quantity", "quantity must be between 1 and %d", limit)
	}
	for _, v := range e.Merchandise.Variants {
		picked, ok := order.SelectedVariants[v.Name]
		if !ok || picked == "" {
			return errs.Required("selected_variants." + v.Name)
		}
		if !contains(v.Options, picked) {
			return errs.Validation("selected_variants."+v.Name, "'%s' is not an option of variant '%s'", picked, v.Name)
		}
	}
	for name := range order.SelectedVariants {
		known := false
		for _, v := range e.Merchandise.Variants {
			known = known || v.Name == name
		}
		if !known {
			return errs.Validation("selected_variants."+name, "unknown variant '%s'", name)
		}
	}
	return nil
}

func (s *service) GetRegistration(ctx context.Context, actor model.Actor, id int64) (*model.Registration, error) {
	reg, err := s.loadRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.ParticipantID == actor.ID || actor.IsAdmin() {
		return reg, nil
	}
	e, err := s.loadEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("registration %d belongs to someone else", id)
	}
	return reg, nil
}

func (s *service) ListRegistrations(ctx context.Context, actor model.Actor, eventID int64) ([]model.Registration, error) {
	e, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can list its registrations", eventID)
	}
	regs, err := s.repo.GetRegistrationsByEventID(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}
	return regs, nil
}

// CancelRegistration withdraws a pending or confirmed registration that has
// not been checked in, returning its seat and stock.
func (s *service) CancelRegistration(ctx context.Context, actor model.Actor, id int64) (*model.Registration, error) {
	reg, err := s.loadRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.ParticipantID != actor.ID && !actor.IsAdmin() {
		return nil, errs.Forbidden("registration %d belongs to someone else", id)
	}
	if !reg.Status.Active() || reg.Attended {
		return nil, errs.State(errs.CodeInvalidTransition, "registration is %s and cannot be cancelled", reg.Status)
	}
	cancelled, err := s.repo.CancelRegistrationTx(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	s.ledger.ReleaseRegistration(ctx, cancelled)
	s.log.Info().Int64("registration_id", id).Str("actor_id", actor.ID).Msg("registration cancelled")

	if e, err := s.repo.GetEventByID(ctx, cancelled.EventID); err == nil {
		s.notify(registrationMessage(dto.KindRegistrationCancelled, e, cancelled), 0)
	}
	return cancelled, nil
}

// ExpireRegistration cancels a fee-bearing registration whose proof never
// arrived or was rejected. It returns nil when there was nothing to expire.
func (s *service) ExpireRegistration(ctx context.Context, id int64) (*model.Registration, error) {
	cancelled, err := s.repo.CancelIfNotConfirmedTx(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !cancelled {
		s.log.Info().Int64("registration_id", id).Msg("registration resolved before timeout, skipping expiry")
		return nil, nil
	}
	reg, err := s.loadRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	s.ledger.ReleaseRegistration(ctx, reg)
	s.log.Info().Int64("registration_id", id).Msg("unpaid registration expired")
	return reg, nil
}
