package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/proofstore"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
)

// ProofInput is either a reference to an already stored proof or the proof
// content itself. Reference may also carry a data: URI.
type ProofInput struct {
	Reference   string
	ContentType string
	Data        []byte
}

func (s *service) UploadProof(ctx context.Context, actor model.Actor, registrationID int64, in ProofInput) (*model.Registration, error) {
	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.ParticipantID != actor.ID && !actor.IsAdmin() {
		return nil, errs.Forbidden("registration %d belongs to someone else", registrationID)
	}
	if err := proofAccepted(reg); err != nil {
		return nil, err
	}

	ref, err := s.storeProof(ctx, registrationID, in)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SubmitPaymentProofTx(ctx, registrationID, ref)
	if errors.Is(err, repo.ErrStatusConflict) {
		if updated != nil {
			if perr := proofAccepted(updated); perr != nil {
				return nil, perr
			}
		}
		return nil, translate(err)
	}
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info().Int64("registration_id", registrationID).Msg("payment proof submitted")
	return updated, nil
}

func proofAccepted(reg *model.Registration) error {
	switch {
	case reg.Status != model.RegistrationPending:
		return errs.State(errs.CodePaymentNotPending, "registration is %s, payment proof is not accepted", reg.Status)
	case reg.PaymentStatus == model.PaymentNotApplicable:
		return errs.State(errs.CodePaymentNotPending, "registration is free, no payment proof is needed")
	case !reg.PaymentProofStatus.AcceptsUpload():
		return errs.State(errs.CodePaymentNotPending, "payment proof was already approved")
	}
	return nil
}

func (s *service) storeProof(ctx context.Context, registrationID int64, in ProofInput) (string, error) {
	data, contentType := in.Data, in.ContentType
	if len(data) == 0 {
		ref := strings.TrimSpace(in.Reference)
		if ref == "" {
			return "", errs.Required("payment_proof")
		}
		ct, decoded, err := proofstore.DecodeDataURI(ref)
		if errors.Is(err, proofstore.ErrNotData) {
			return ref, nil
		}
		if err != nil {
			return "", errs.Validation("payment_proof", "%v", err)
		}
		data, contentType = decoded, ct
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if s.proofs == nil {
		return "", errs.Validation("payment_proof", "proof uploads are not enabled, send a reference instead")
	}
	ref, err := s.proofs.Put(ctx, registrationID, contentType, data)
	switch {
	case errors.Is(err, proofstore.ErrEmpty), errors.Is(err, proofstore.ErrTooLarge):
		return "", errs.Validation("payment_proof", "%v", err)
	case err != nil:
		s.log.Error().Err(err).Int64("registration_id", registrationID).Msg("failed to store payment proof")
		return "", err
	}
	return ref, nil
}

// VerifyPayment resolves a pending proof. Approval confirms the registration
// and issues its ticket; rejection leaves it pending for a new upload.
func (s *service) VerifyPayment(ctx context.Context, actor model.Actor, registrationID int64, approve bool) (*model.Registration, error) {
	reg, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	e, err := s.loadEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(e) {
		return nil, errs.Forbidden("only the organizer of event %d can verify payments", e.ID)
	}
	if reg.PaymentProofStatus != model.ProofPending {
		return nil, errs.State(errs.CodePaymentNotPending, "payment proof is %s, nothing to verify", reg.PaymentProofStatus)
	}

	resolved, err := s.repo.ResolvePaymentTx(ctx, registrationID, approve)
	if errors.Is(err, repo.ErrStatusConflict) {
		return nil, errs.State(errs.CodePaymentNotPending, "payment proof was already resolved").Wrap(err)
	}
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info().Int64("registration_id", registrationID).Bool("approved", approve).Str("actor_id", actor.ID).
		Msg("payment proof resolved")

	if !approve {
		s.notify(registrationMessage(dto.KindPaymentRejected, e, resolved), 0)
		return resolved, nil
	}

	t, err := s.issuer.Issue(ctx, resolved)
	if err != nil {
		s.log.Error().Err(err).Int64("registration_id", registrationID).Msg("failed to issue ticket after approval")
		return nil, translate(err)
	}
	resolved.TicketID = t.ID
	s.notify(registrationMessage(dto.KindRegistrationConfirmed, e, resolved), 0)
	return resolved, nil
}

// GetTicket returns the ticket of a confirmed registration, issuing it if a
// previous issuance was interrupted.
func (s *service) GetTicket(ctx context.Context, actor model.Actor, registrationID int64) (*model.Ticket, error) {
	reg, err := s.GetRegistration(ctx, actor, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status != model.RegistrationConfirmed {
		return nil, errs.State(errs.CodeNotConfirmed, "registration is %s, no ticket", reg.Status)
	}
	t, err := s.issuer.Issue(ctx, reg)
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}
