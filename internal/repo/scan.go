package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type eventCols struct {
	tags, form, merch    []byte
	start, end, deadline sql.NullTime
	limit, stock         sql.NullInt64
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func eventColumns(e *model.Event) (eventCols, error) {
	var c eventCols
	var err error
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	if c.tags, err = json.Marshal(tags); err != nil {
		return c, fmt.Errorf("failed to encode tags: %w", err)
	}
	form := e.CustomForm
	if form == nil {
		form = []model.FormField{}
	}
	if c.form, err = json.Marshal(form); err != nil {
		return c, fmt.Errorf("failed to encode custom form: %w", err)
	}
	if e.Merchandise != nil {
		if c.merch, err = json.Marshal(e.Merchandise); err != nil {
			return c, fmt.Errorf("failed to encode merchandise: %w", err)
		}
		c.stock = sql.NullInt64{Int64: int64(e.Merchandise.StockQuantity), Valid: true}
	}
	c.start = nullTime(e.StartDate)
	c.end = nullTime(e.EndDate)
	c.deadline = nullTime(e.RegistrationDeadline)
	if e.RegistrationLimit != nil {
		c.limit = sql.NullInt64{Int64: int64(*e.RegistrationLimit), Valid: true}
	}
	return c, nil
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e                 model.Event
		c                 eventCols
		typ, status, elig string
	)
	if err := row.Scan(
		&e.ID, &e.OrganizerID, &e.Name, &e.Description, &c.tags, &typ, &status, &c.start, &c.end,
		&c.deadline, &c.limit, &e.RegistrationFee, &elig,
		&c.form, &c.merch, &c.stock, &e.CurrentRegistrations, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Type = model.EventType(typ)
	e.Status = model.EventStatus(status)
	e.Eligibility = model.Eligibility(elig)
	e.StartDate = c.start.Time
	e.EndDate = c.end.Time
	e.RegistrationDeadline = c.deadline.Time
	if c.limit.Valid {
		limit := int(c.limit.Int64)
		e.RegistrationLimit = &limit
	}
	if err := json.Unmarshal(c.tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal(c.form, &e.CustomForm); err != nil {
		return nil, fmt.Errorf("failed to decode custom form: %w", err)
	}
	if len(c.merch) > 0 {
		e.Merchandise = &model.MerchandiseDetails{}
		if err := json.Unmarshal(c.merch, e.Merchandise); err != nil {
			return nil, fmt.Errorf("failed to decode merchandise: %w", err)
		}
		// The column is authoritative; the JSON copy is only the value at last edit.
		e.Merchandise.StockQuantity = int(c.stock.Int64)
	}
	return &e, nil
}

type registrationCols struct {
	form, order []byte
}

func registrationColumns(reg *model.Registration) (registrationCols, error) {
	var c registrationCols
	var err error
	data := reg.CustomFormData
	if data == nil {
		data = map[string]any{}
	}
	if c.form, err = json.Marshal(data); err != nil {
		return c, fmt.Errorf("failed to encode custom form data: %w", err)
	}
	if reg.MerchandiseOrder != nil {
		if c.order, err = json.Marshal(reg.MerchandiseOrder); err != nil {
			return c, fmt.Errorf("failed to encode merchandise order: %w", err)
		}
	}
	return c, nil
}

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var (
		reg                         model.Registration
		c                           registrationCols
		status, payment, proofState string
		markedAt                    sql.NullTime
	)
	if err := row.Scan(
		&reg.ID, &reg.EventID, &reg.ParticipantID, &reg.ParticipantName, &reg.ParticipantEmail, &status,
		&payment, &reg.PaymentProof, &proofState, &reg.Amount, &c.form,
		&c.order, &reg.TicketID, &reg.Attended, &markedAt,
		&reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reg.Status = model.RegistrationStatus(status)
	reg.PaymentStatus = model.PaymentStatus(payment)
	reg.PaymentProofStatus = model.ProofStatus(proofState)
	if markedAt.Valid {
		t := markedAt.Time
		reg.AttendanceMarkedAt = &t
	}
	if err := json.Unmarshal(c.form, &reg.CustomFormData); err != nil {
		return nil, fmt.Errorf("failed to decode custom form data: %w", err)
	}
	if len(c.order) > 0 {
		reg.MerchandiseOrder = &model.MerchandiseOrder{}
		if err := json.Unmarshal(c.order, reg.MerchandiseOrder); err != nil {
			return nil, fmt.Errorf("failed to decode merchandise order: %w", err)
		}
	}
	return &reg, nil
}
