package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

type purchaseKey struct {
	eventID       int64
	participantID string
}

// memoryRepository keeps everything in process. One mutex serialises all
// writes, which makes every guarded update trivially atomic.
type memoryRepository struct {
	mu            sync.Mutex
	now           func() time.Time
	nextEventID   int64
	nextRegID     int64
	nextAuditID   int64
	events        map[int64]*model.Event
	registrations map[int64]*model.Registration
	purchases     map[purchaseKey]int
	tickets       map[string]*model.Ticket
	ticketsByReg  map[int64]string
	audit         []model.AttendanceAudit
}

// NewMemoryRepository returns a Repository that lives in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		now:           time.Now,
		events:        make(map[int64]*model.Event),
		registrations: make(map[int64]*model.Registration),
		purchases:     make(map[purchaseKey]int),
		tickets:       make(map[string]*model.Ticket),
		ticketsByReg:  make(map[int64]string),
	}
}

func (m *memoryRepository) MigrateUp(string) error   { return nil }
func (m *memoryRepository) MigrateDown(string) error { return nil }

func cloneEvent(e *model.Event) *model.Event {
	c := *e
	if e.RegistrationLimit != nil {
		limit := *e.RegistrationLimit
		c.RegistrationLimit = &limit
	}
	if e.Merchandise != nil {
		merch := *e.Merchandise
		c.Merchandise = &merch
	}
	c.Tags = append([]string(nil), e.Tags...)
	c.CustomForm = append([]model.FormField(nil), e.CustomForm...)
	return &c
}

func (m *memoryRepository) cloneRegistration(r *model.Registration) *model.Registration {
	c := *r
	if r.AttendanceMarkedAt != nil {
		t := *r.AttendanceMarkedAt
		c.AttendanceMarkedAt = &t
	}
	if r.MerchandiseOrder != nil {
		order := *r.MerchandiseOrder
		c.MerchandiseOrder = &order
	}
	c.TicketID = m.ticketsByReg[r.ID]
	return &c
}

func (m *memoryRepository) CreateEvent(_ context.Context, e *model.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEventID++
	stored := cloneEvent(e)
	stored.ID = m.nextEventID
	stored.CurrentRegistrations = 0
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.events[stored.ID] = stored
	return stored.ID, nil
}

func (m *memoryRepository) GetEventByID(_ context.Context, id int64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return cloneEvent(e), nil
}

func (m *memoryRepository) GetAllEvents(_ context.Context, status model.EventStatus) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		if status != "" && e.Status != status {
			continue
		}
		events = append(events, *cloneEvent(e))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
	return events, nil
}

func (m *memoryRepository) UpdateEventTx(_ context.Context, e *model.Event, expected model.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[e.ID]
	if !ok {
		return ErrEventNotFound
	}
	if cur.Status != expected {
		return ErrStatusConflict
	}
	next := cloneEvent(e)
	next.Status = cur.Status
	next.OrganizerID = cur.OrganizerID
	next.CurrentRegistrations = cur.CurrentRegistrations
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = m.now()
	if cur.Status != model.EventDraft && cur.Merchandise != nil && next.Merchandise != nil {
		next.Merchandise.StockQuantity = cur.Merchandise.StockQuantity
	}
	m.events[e.ID] = next
	return nil
}

func (m *memoryRepository) UpdateEventStatusTx(_ context.Context, id int64, from, to model.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if e.Status != from {
		return ErrStatusConflict
	}
	e.Status = to
	e.UpdatedAt = m.now()
	return nil
}

func (m *memoryRepository) ReserveSeat(_ context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if e.Status != model.EventPublished {
		return ErrRegistrationClosed
	}
	if e.RegistrationLimit != nil && e.CurrentRegistrations >= *e.RegistrationLimit {
		return ErrEventFull
	}
	e.CurrentRegistrations++
	return nil
}

func (m *memoryRepository) ReleaseSeat(_ context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.events[eventID]; ok && e.CurrentRegistrations > 0 {
		e.CurrentRegistrations--
	}
	return nil
}

func (m *memoryRepository) ReserveStock(_ context.Context, eventID int64, participantID string, quantity, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	key := purchaseKey{eventID, participantID}
	if m.purchases[key]+quantity > limit {
		return ErrPurchaseLimit
	}
	if e.Merchandise == nil || e.Merchandise.StockQuantity < quantity {
		return ErrOutOfStock
	}
	m.purchases[key] += quantity
	e.Merchandise.StockQuantity -= quantity
	return nil
}

func (m *memoryRepository) ReleaseStock(_ context.Context, eventID int64, participantID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.events[eventID]; ok && e.Merchandise != nil {
		e.Merchandise.StockQuantity += quantity
	}
	key := purchaseKey{eventID, participantID}
	m.purchases[key] = max(m.purchases[key]-quantity, 0)
	return nil
}

func (m *memoryRepository) CreateRegistration(_ context.Context, reg *model.Registration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[reg.EventID]
	if !ok {
		return 0, ErrEventNotFound
	}
	if e.Status != model.EventPublished {
		return 0, ErrRegistrationClosed
	}
	if reg.MerchandiseOrder == nil {
		for _, r := range m.registrations {
			if r.EventID == reg.EventID && r.ParticipantID == reg.ParticipantID &&
				r.MerchandiseOrder == nil && r.Status != model.RegistrationCancelled {
				return 0, ErrDuplicateRegistration
			}
		}
	}
	m.nextRegID++
	stored := *reg
	stored.ID = m.nextRegID
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	stored.TicketID = ""
	m.registrations[stored.ID] = &stored
	return stored.ID, nil
}

func (m *memoryRepository) GetRegistrationByID(_ context.Context, id int64) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return m.cloneRegistration(r), nil
}

func (m *memoryRepository) GetActiveRegistration(_ context.Context, eventID int64, participantID string) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *model.Registration
	for _, r := range m.registrations {
		if r.EventID == eventID && r.ParticipantID == participantID && r.Status != model.RegistrationCancelled {
			if found == nil || r.ID > found.ID {
				found = r
			}
		}
	}
	if found == nil {
		return nil, ErrRegistrationNotFound
	}
	return m.cloneRegistration(found), nil
}

func (m *memoryRepository) GetRegistrationsByEventID(_ context.Context, eventID int64) ([]model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var regs []model.Registration
	for _, r := range m.registrations {
		if r.EventID == eventID {
			regs = append(regs, *m.cloneRegistration(r))
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs, nil
}

// cas applies mutate when guard holds, mirroring a guarded UPDATE.
func (m *memoryRepository) cas(id int64, guard func(*model.Registration) bool, mutate func(*model.Registration)) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.registrations[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	if !guard(r) {
		return m.cloneRegistration(r), ErrStatusConflict
	}
	mutate(r)
	r.UpdatedAt = m.now()
	return m.cloneRegistration(r), nil
}

func (m *memoryRepository) ConfirmRegistrationTx(_ context.Context, id int64) (*model.Registration, error) {
	return m.cas(id,
		func(r *model.Registration) bool {
			return r.Status == model.RegistrationPending && r.PaymentStatus == model.PaymentNotApplicable
		},
		func(r *model.Registration) { r.Status = model.RegistrationConfirmed },
	)
}

func (m *memoryRepository) SubmitPaymentProofTx(_ context.Context, id int64, proof string) (*model.Registration, error) {
	return m.cas(id,
		func(r *model.Registration) bool {
			return r.Status == model.RegistrationPending &&
				r.PaymentStatus != model.PaymentNotApplicable &&
				r.PaymentProofStatus.AcceptsUpload()
		},
		func(r *model.Registration) {
			r.PaymentProof = proof
			r.PaymentProofStatus = model.ProofPending
		},
	)
}

func (m *memoryRepository) ResolvePaymentTx(_ context.Context, id int64, approve bool) (*model.Registration, error) {
	return m.cas(id,
		func(r *model.Registration) bool {
			return r.Status == model.RegistrationPending && r.PaymentProofStatus == model.ProofPending
		},
		func(r *model.Registration) {
			if approve {
				r.Status = model.RegistrationConfirmed
				r.PaymentStatus = model.PaymentPaid
				r.PaymentProofStatus = model.ProofApproved
				return
			}
			r.PaymentProofStatus = model.ProofRejected
		},
	)
}

func (m *memoryRepository) CancelRegistrationTx(_ context.Context, id int64) (*model.Registration, error) {
	return m.cas(id,
		func(r *model.Registration) bool { return r.Status.Active() && !r.Attended },
		func(r *model.Registration) { r.Status = model.RegistrationCancelled },
	)
}

func (m *memoryRepository) CancelIfNotConfirmedTx(_ context.Context, registrationID int64) (bool, error) {
	_, err := m.cas(registrationID,
		func(r *model.Registration) bool {
			return r.Status == model.RegistrationPending && r.PaymentProofStatus.Expirable()
		},
		func(r *model.Registration) { r.Status = model.RegistrationCancelled },
	)
	switch err {
	case nil:
		return true, nil
	case ErrStatusConflict:
		return false, nil
	default:
		return false, err
	}
}

func (m *memoryRepository) MarkAttendedTx(_ context.Context, id int64, at time.Time) (bool, *model.Registration, error) {
	reg, err := m.cas(id,
		func(r *model.Registration) bool { return !r.Attended && r.Status == model.RegistrationConfirmed },
		func(r *model.Registration) {
			r.Attended = true
			r.AttendanceMarkedAt = &at
		},
	)
	switch {
	case err == nil:
		return true, reg, nil
	case err == ErrStatusConflict && reg.Attended:
		return false, reg, nil
	default:
		return false, reg, err
	}
}

func (m *memoryRepository) OverrideAttendanceTx(_ context.Context, audit model.AttendanceAudit) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.registrations[audit.RegistrationID]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	r.Attended = audit.Attended
	r.AttendanceMarkedAt = nil
	if audit.Attended {
		at := audit.CreatedAt
		r.AttendanceMarkedAt = &at
	}
	r.UpdatedAt = m.now()

	m.nextAuditID++
	audit.ID = m.nextAuditID
	m.audit = append(m.audit, audit)
	return m.cloneRegistration(r), nil
}

func (m *memoryRepository) GetAttendanceAudit(_ context.Context, registrationID int64) ([]model.AttendanceAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AttendanceAudit
	for _, a := range m.audit {
		if a.RegistrationID == registrationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepository) CreateTicket(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tickets[t.ID]; ok {
		return ErrTicketIDTaken
	}
	if _, ok := m.ticketsByReg[t.RegistrationID]; ok {
		return ErrTicketExists
	}
	stored := *t
	m.tickets[t.ID] = &stored
	m.ticketsByReg[t.RegistrationID] = t.ID
	return nil
}

func (m *memoryRepository) GetTicketByID(_ context.Context, id string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	c := *t
	return &c, nil
}

func (m *memoryRepository) GetTicketByRegistrationID(_ context.Context, registrationID int64) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.ticketsByReg[registrationID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	c := *m.tickets[id]
	return &c, nil
}
