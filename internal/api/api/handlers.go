package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/auth"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/proofstore"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/service"
	"github.com/Imking640/Felicity-Event-Booking-sub000/pkg/validator"
)

type handler struct {
	svc service.Service
	log *zerolog.Logger
}

func (h *handler) actor(c *ginext.Context) model.Actor {
	actor, _ := auth.ActorFrom(c)
	return actor
}

func (h *handler) id(c *ginext.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		dto.FieldBadFormatError(c, param)
		return 0, false
	}
	return id, true
}

// bind decodes and validates a JSON body. An empty body is accepted when
// optional is set.
func (h *handler) bind(c *ginext.Context, req any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("failed to parse request body")
		dto.BadResponseError(c, dto.FieldBadFormat, "Invalid JSON format")
		return false
	}
	if verr := validator.Validate(c.Request.Context(), req); verr != nil {
		dto.ValidationError(c, verr.Error())
		return false
	}
	return true
}

func (h *handler) fail(c *ginext.Context, err error) {
	if errs.KindOf(err) == errs.KindInternal {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}
	dto.ServiceError(c, err)
}

func (h *handler) createEvent(c *ginext.Context) {
	var req dto.CreateEventRequest
	if !h.bind(c, &req, false) {
		return
	}
	e, err := h.svc.CreateEvent(c.Request.Context(), h.actor(c), req.ToModel())
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, e)
}

func (h *handler) listEvents(c *ginext.Context) {
	events, err := h.svc.ListEvents(c.Request.Context(), h.actor(c), model.EventStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, events)
}

func (h *handler) getEvent(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	e, err := h.svc.GetEvent(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, e)
}

func (h *handler) updateEvent(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateEventRequest
	if !h.bind(c, &req, false) {
		return
	}
	e, err := h.svc.UpdateEvent(c.Request.Context(), h.actor(c), id, req.ToPatch())
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, e)
}

type transitionFunc func(ctx context.Context, actor model.Actor, id int64) (*model.Event, error)

func (h *handler) transition(step transitionFunc) func(*ginext.Context) {
	return func(c *ginext.Context) {
		id, ok := h.id(c, "id")
		if !ok {
			return
		}
		e, err := step(c.Request.Context(), h.actor(c), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		dto.SuccessResponse(c, e)
	}
}

func (h *handler) register(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var req dto.RegisterRequest
	if !h.bind(c, &req, true) {
		return
	}
	reg, err := h.svc.Register(c.Request.Context(), h.actor(c), service.RegisterInput{
		EventID:          id,
		CustomFormData:   req.CustomFormData,
		MerchandiseOrder: req.MerchandiseOrder,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, reg)
}

func (h *handler) listRegistrations(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	regs, err := h.svc.ListRegistrations(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, regs)
}

var exportHeader = []string{
	"registration_id", "participant_id", "participant_name", "participant_email",
	"status", "ticket_id", "attended", "attendance_marked_at",
}

func (h *handler) exportAttendance(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	rows, err := h.svc.AttendanceExport(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="event-%d-attendance.csv"`, id))
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, r := range rows {
		markedAt := ""
		if r.AttendanceMarkedAt != nil {
			markedAt = r.AttendanceMarkedAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{
			strconv.FormatInt(r.RegistrationID, 10),
			r.ParticipantID,
			r.ParticipantName,
			r.ParticipantEmail,
			string(r.Status),
			r.TicketID,
			strconv.FormatBool(r.Attended),
			markedAt,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.log.Error().Err(err).Int64("event_id", id).Msg("failed to write attendance export")
	}
}

func (h *handler) overrideAttendance(c *ginext.Context) {
	eventID, ok := h.id(c, "id")
	if !ok {
		return
	}
	regID, ok := h.id(c, "registrationId")
	if !ok {
		return
	}
	var req dto.OverrideAttendanceRequest
	if !h.bind(c, &req, false) {
		return
	}
	reg, err := h.svc.OverrideAttendance(c.Request.Context(), h.actor(c), service.OverrideInput{
		EventID:        eventID,
		RegistrationID: regID,
		Attended:       *req.Attended,
		Reason:         req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, reg)
}

func (h *handler) getRegistration(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	reg, err := h.svc.GetRegistration(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, reg)
}

func (h *handler) getTicket(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetTicket(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, t)
}

func (h *handler) attendanceAudit(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	audit, err := h.svc.AttendanceAudit(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, audit)
}

// uploadProof accepts a multipart "proof" file or a JSON body carrying a
// reference or data: URI.
func (h *handler) uploadProof(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in service.ProofInput
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, err := c.FormFile("proof")
		if err != nil {
			dto.ValidationError(c, "Field 'proof' is required")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.fail(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, proofstore.MaxProofSize+1))
		if err != nil {
			h.fail(c, err)
			return
		}
		in = service.ProofInput{Data: data, ContentType: fh.Header.Get("Content-Type")}
	} else {
		var req dto.PaymentProofRequest
		if !h.bind(c, &req, false) {
			return
		}
		in = service.ProofInput{Reference: req.PaymentProof}
	}

	reg, err := h.svc.UploadProof(c.Request.Context(), h.actor(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, reg)
}

func (h *handler) verifyPayment(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var req dto.VerifyPaymentRequest
	if !h.bind(c, &req, false) {
		return
	}
	reg, err := h.svc.VerifyPayment(c.Request.Context(), h.actor(c), id, req.Approve())
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, reg)
}

func (h *handler) cancelRegistration(c *ginext.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	reg, err := h.svc.CancelRegistration(c.Request.Context(), h.actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, reg)
}

func (h *handler) scan(c *ginext.Context) {
	var req dto.ScanRequest
	if !h.bind(c, &req, false) {
		return
	}
	res, err := h.svc.Scan(c.Request.Context(), h.actor(c), req.Value())
	if err != nil {
		h.fail(c, err)
		return
	}
	dto.SuccessResponse(c, res)
}
