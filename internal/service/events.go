package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/lifecycle"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
)

func (s *service) CreateEvent(ctx context.Context, actor model.Actor, e *model.Event) (*model.Event, error) {
	if actor.Role != model.RoleOrganizer && !actor.IsAdmin() {
		return nil, errs.Forbidden("only organizers can create events")
	}
	if strings.TrimSpace(e.Name) == "" {
		return nil, errs.Required("name")
	}
	if e.OrganizerID == "" || !actor.IsAdmin() {
		e.OrganizerID = actor.ID
	}
	if e.Type == "" {
		e.Type = model.EventNormal
	}
	if e.Eligibility == "" {
		e.Eligibility = model.EligibilityAll
	}
	e.Status = model.EventDraft
	if err := lifecycle.ValidateShape(e); err != nil {
		return nil, err
	}

	id, err := s.repo.CreateEvent(ctx, e)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		return nil, translate(err)
	}
	s.log.Info().Int64("event_id", id).Str("organizer_id", e.OrganizerID).Msg("event created")
	return s.loadEvent(ctx, id)
}

// visible hides drafts from everyone but their owner.
func visible(actor model.Actor, e *model.Event) bool {
	return e.Status != model.EventDraft || actor.Owns(e)
}

func (s *service) GetEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error) {
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(actor, e) {
		return nil, errs.NotFound(errs.CodeEventNotFound, "event not found")
	}
	return e, nil
}

func (s *service) ListEvents(ctx context.Context, actor model.Actor, status model.EventStatus) ([]model.Event, error) {
	if status != "" && !status.Valid() {
		return nil, errs.Validation("status", "unknown event status '%s'", status)
	}
	events, err := s.repo.GetAllEvents(ctx, status)
	if err != nil {
		return nil, translate(err)
	}
	out := events[:0]
	for _, e := range events {
		if visible(actor, &e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *service) UpdateEvent(ctx context.Context, actor model.Actor, id int64, p lifecycle.Patch) (*model.Event, error) {
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can edit it", id)
	}
	expected := e.Status
	if err := lifecycle.Apply(e, p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateEventTx(ctx, e, expected); err != nil {
		return nil, translate(err)
	}
	s.log.Info().Int64("event_id", id).Str("status", string(expected)).Msg("event updated")
	return s.loadEvent(ctx, id)
}

func (s *service) PublishEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error) {
	e, err := s.transition(ctx, actor, id, lifecycle.Publish)
	if err != nil {
		return nil, err
	}
	s.notify(dto.NotificationMessage{Kind: dto.KindEventPublished, EventID: e.ID, EventName: e.Name}, 0)
	return e, nil
}

func (s *service) CloseRegistration(ctx context.Context, actor model.Actor, id int64) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.CloseRegistration)
}

func (s *service) CompleteEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Complete)
}

func (s *service) CancelEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Cancel)
}

// transition runs step against the stored event and persists the status
// change as a compare-and-swap on the previous status.
func (s *service) transition(ctx context.Context, actor model.Actor, id int64, step func(*model.Event) error) (*model.Event, error) {
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can change its status", id)
	}
	from := e.Status
	if err := step(e); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateEventStatusTx(ctx, id, from, e.Status); err != nil {
		if errors.Is(err, repo.ErrStatusConflict) {
			return nil, errs.State(errs.CodeStatusConflict, "event %d is no longer %s", id, from).Wrap(err)
		}
		return nil, translate(err)
	}
	s.log.Info().Int64("event_id", id).Str("from", string(from)).Str("to", string(e.Status)).
		Msg("event status changed")
	return s.loadEvent(ctx, id)
}
