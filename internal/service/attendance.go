package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
)

type ParticipantSummary struct {
	RegistrationID int64  `json:"registration_id"`
	ParticipantID  string `json:"participant_id"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	TicketID       string `json:"ticket_id"`
	EventID        int64  `json:"event_id"`
	EventName      string `json:"event_name"`
}

type ScanResult struct {
	Success            bool                `json:"success"`
	Duplicate          bool                `json:"duplicate,omitempty"`
	AttendanceMarkedAt *time.Time          `json:"attendance_marked_at,omitempty"`
	Participant        *ParticipantSummary `json:"participant,omitempty"`
}

// Scan checks a ticket in. Scanning an already checked-in ticket succeeds
// with Duplicate set and leaves the original timestamp untouched.
func (s *service) Scan(ctx context.Context, actor model.Actor, code string) (*ScanResult, error) {
	t, err := s.issuer.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	reg, err := s.loadRegistration(ctx, t.RegistrationID)
	if err != nil {
		return nil, err
	}
	e, err := s.loadEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can scan its tickets", e.ID)
	}
	if e.Status == model.EventCancelled {
		return nil, errs.State(errs.CodeEventCancelled, "event was cancelled")
	}
	if reg.Status != model.RegistrationConfirmed {
		return nil, errs.State(errs.CodeNotConfirmed, "registration is %s", reg.Status)
	}

	marked, updated, err := s.repo.MarkAttendedTx(ctx, reg.ID, s.now().UTC())
	if errors.Is(err, repo.ErrStatusConflict) {
		return nil, errs.State(errs.CodeNotConfirmed, "registration is no longer confirmed").Wrap(err)
	}
	if err != nil {
		return nil, translate(err)
	}
	reg = updated

	summary := &ParticipantSummary{
		RegistrationID: reg.ID,
		ParticipantID:  reg.ParticipantID,
		Name:           reg.ParticipantName,
		Email:          reg.ParticipantEmail,
		TicketID:       t.ID,
		EventID:        e.ID,
		EventName:      e.Name,
	}
	if !marked {
		s.log.Info().Str("ticket_id", t.ID).Int64("registration_id", reg.ID).Msg("duplicate scan")
	} else {
		s.log.Info().Str("ticket_id", t.ID).Int64("registration_id", reg.ID).Msg("attendance marked")
	}
	return &ScanResult{
		Success:            true,
		Duplicate:          !marked,
		AttendanceMarkedAt: reg.AttendanceMarkedAt,
		Participant:        summary,
	}, nil
}

type OverrideInput struct {
	EventID        int64
	RegistrationID int64
	Attended       bool
	Reason         string
}

// OverrideAttendance sets attendance by hand and records who did it and why.
func (s *service) OverrideAttendance(ctx context.Context, actor model.Actor, in OverrideInput) (*model.Registration, error) {
	e, err := s.loadEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can override attendance", e.ID)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, errs.Required("reason")
	}
	reg, err := s.loadRegistration(ctx, in.RegistrationID)
	if err != nil {
		return nil, err
	}
	if reg.EventID != e.ID {
		return nil, errs.NotFound(errs.CodeRegistrationNotFound, "registration %d does not belong to event %d", reg.ID, e.ID)
	}

	updated, err := s.repo.OverrideAttendanceTx(ctx, model.AttendanceAudit{
		RegistrationID: reg.ID,
		Attended:       in.Attended,
		Reason:         reason,
		ActorID:        actor.ID,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info().Int64("registration_id", reg.ID).Bool("attended", in.Attended).Str("actor_id", actor.ID).
		Msg("attendance overridden")
	return updated, nil
}

type AttendanceRow struct {
	RegistrationID     int64
	ParticipantID      string
	ParticipantName    string
	ParticipantEmail   string
	Status             model.RegistrationStatus
	TicketID           string
	Attended           bool
	AttendanceMarkedAt *time.Time
}

func (s *service) AttendanceExport(ctx context.Context, actor model.Actor, eventID int64) ([]AttendanceRow, error) {
	regs, err := s.ListRegistrations(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	rows := make([]AttendanceRow, 0, len(regs))
	for _, r := range regs {
		rows = append(rows, AttendanceRow{
			RegistrationID:     r.ID,
			ParticipantID:      r.ParticipantID,
			ParticipantName:    r.ParticipantName,
			ParticipantEmail:   r.ParticipantEmail,
			Status:             r.Status,
			TicketID:           r.TicketID,
			Attended:           r.Attended,
			AttendanceMarkedAt: r.AttendanceMarkedAt,
		})
	}
	return rows, nil
}

func (s *service) AttendanceAudit(ctx context.Context, actor model.Actor, registrationID int64) ([]model.AttendanceAudit, error) {
	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	e, err := s.loadEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can read the attendance audit", e.ID)
	}
	audit, err := s.repo.GetAttendanceAudit(ctx, registrationID)
	if err != nil {
		return nil, translate(err)
	}
	return audit, nil
}
