package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrEventFull             = errors.New("event is full")
	ErrRegistrationClosed    = errors.New("event is not open for registration")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrOutOfStock            = errors.New("merchandise out of stock")
	ErrPurchaseLimit         = errors.New("purchase limit reached")
	ErrStatusConflict        = errors.New("status changed concurrently")
	ErrTicketIDTaken         = errors.New("ticket id already issued")
	ErrTicketExists          = errors.New("registration already has a ticket")
)

const pqUniqueViolation = "23505"

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetAllEvents(ctx context.Context, status model.EventStatus) ([]model.Event, error)
	// UpdateEventTx writes content fields only if the event is still in expected.
	UpdateEventTx(ctx context.Context, e *model.Event, expected model.EventStatus) error
	UpdateEventStatusTx(ctx context.Context, id int64, from, to model.EventStatus) error

	ReserveSeat(ctx context.Context, eventID int64) error
	ReleaseSeat(ctx context.Context, eventID int64) error
	ReserveStock(ctx context.Context, eventID int64, participantID string, quantity, limit int) error
	ReleaseStock(ctx context.Context, eventID int64, participantID string, quantity int) error

	CreateRegistration(ctx context.Context, reg *model.Registration) (int64, error)
	GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error)
	GetActiveRegistration(ctx context.Context, eventID int64, participantID string) (*model.Registration, error)
	GetRegistrationsByEventID(ctx context.Context, eventID int64) ([]model.Registration, error)
	ConfirmRegistrationTx(ctx context.Context, id int64) (*model.Registration, error)
	SubmitPaymentProofTx(ctx context.Context, id int64, proof string) (*model.Registration, error)
	ResolvePaymentTx(ctx context.Context, id int64, approve bool) (*model.Registration, error)
	CancelRegistrationTx(ctx context.Context, id int64) (*model.Registration, error)
	CancelIfNotConfirmedTx(ctx context.Context, registrationID int64) (bool, error)
	// MarkAttendedTx flips attended false->true; marked is false when the
	// registration was already checked in.
	MarkAttendedTx(ctx context.Context, id int64, at time.Time) (marked bool, reg *model.Registration, err error)
	OverrideAttendanceTx(ctx context.Context, audit model.AttendanceAudit) (*model.Registration, error)
	GetAttendanceAudit(ctx context.Context, registrationID int64) ([]model.AttendanceAudit, error)

	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*model.Ticket, error)
	GetTicketByRegistrationID(ctx context.Context, registrationID int64) (*model.Ticket, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	cols, err := eventColumns(e)
	if err != nil {
		return 0, err
	}
	query := `
		INSERT INTO events (organizer_id, name, description, tags, type, status, start_date, end_date,
		                    registration_deadline, registration_limit, registration_fee, eligibility,
		                    custom_form, merchandise, stock_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	var id int64
	err = r.db.Master.QueryRowContext(ctx, query,
		e.OrganizerID, e.Name, e.Description, cols.tags, string(e.Type), string(e.Status), cols.start, cols.end,
		cols.deadline, cols.limit, e.RegistrationFee, string(e.Eligibility), cols.form, cols.merch, cols.stock,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

const eventSelect = `
	SELECT id, organizer_id, name, description, tags, type, status, start_date, end_date,
	       registration_deadline, registration_limit, registration_fee, eligibility,
	       custom_form, merchandise, stock_quantity, current_registrations, created_at, updated_at
	FROM events
`

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	e, err := scanEvent(r.db.Master.QueryRowContext(ctx, eventSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *repository) GetAllEvents(ctx context.Context, status model.EventStatus) ([]model.Event, error) {
	query := eventSelect + ` WHERE ($1::text = '' OR status = $1::text) ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *repository) UpdateEventTx(ctx context.Context, e *model.Event, expected model.EventStatus) error {
	cols, err := eventColumns(e)
	if err != nil {
		return err
	}
	// Stock only moves through the ledger once the event is live.
	query := `
		UPDATE events
		SET name = $3, description = $4, tags = $5, type = $6, start_date = $7, end_date = $8,
		    registration_deadline = $9, registration_limit = $10, registration_fee = $11,
		    eligibility = $12, custom_form = $13, merchandise = $14,
		    stock_quantity = CASE WHEN status = 'draft' THEN $15 ELSE stock_quantity END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.Master.ExecContext(ctx, query,
		e.ID, string(expected), e.Name, e.Description, cols.tags, string(e.Type), cols.start, cols.end,
		cols.deadline, cols.limit, e.RegistrationFee, string(e.Eligibility), cols.form, cols.merch, cols.stock,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return r.eventCASResult(ctx, res, e.ID)
}

func (r *repository) UpdateEventStatusTx(ctx context.Context, id int64, from, to model.EventStatus) error {
	res, err := r.db.Master.ExecContext(ctx, `
		UPDATE events SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return r.eventCASResult(ctx, res, id)
}

func (r *repository) eventCASResult(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	if ok, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id); err != nil {
		return err
	} else if !ok {
		return ErrEventNotFound
	}
	return ErrStatusConflict
}

func (r *repository) ReserveSeat(ctx context.Context, eventID int64) error {
	res, err := r.db.Master.ExecContext(ctx, `
		UPDATE events
		SET current_registrations = current_registrations + 1
		WHERE id = $1 AND status = 'published'
		  AND (registration_limit IS NULL OR current_registrations < registration_limit)
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to reserve seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	return r.registrationRefusal(ctx, eventID, ErrEventFull)
}

// registrationRefusal explains why a guarded write on an event matched no
// row. fallback is returned when the event is still published.
func (r *repository) registrationRefusal(ctx context.Context, eventID int64, fallback error) error {
	var status string
	err := r.db.Master.QueryRowContext(ctx, `SELECT status FROM events WHERE id = $1`, eventID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrEventNotFound
	case err != nil:
		return fmt.Errorf("failed to read event status: %w", err)
	case model.EventStatus(status) != model.EventPublished:
		return ErrRegistrationClosed
	default:
		return fallback
	}
}

func (r *repository) ReleaseSeat(ctx context.Context, eventID int64) error {
	_, err := r.db.Master.ExecContext(ctx, `
		UPDATE events
		SET current_registrations = current_registrations - 1
		WHERE id = $1 AND current_registrations > 0
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to release seat: %w", err)
	}
	return nil
}

func (r *repository) ReserveStock(ctx context.Context, eventID int64, participantID string, quantity, limit int) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO merchandise_purchases (event_id, participant_id, quantity)
		SELECT $1::bigint, $2::text, $3::int WHERE $3::int <= $4::int
		ON CONFLICT (event_id, participant_id) DO UPDATE
		SET quantity = merchandise_purchases.quantity + EXCLUDED.quantity
		WHERE merchandise_purchases.quantity + EXCLUDED.quantity <= $4::int
	`, eventID, participantID, quantity, limit)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to reserve purchase quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		_ = tx.Rollback()
		return ErrPurchaseLimit
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE events SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2
	`, eventID, quantity)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		_ = tx.Rollback()
		return ErrOutOfStock
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) ReleaseStock(ctx context.Context, eventID int64, participantID string, quantity int) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET stock_quantity = stock_quantity + $2 WHERE id = $1
	`, eventID, quantity); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE merchandise_purchases SET quantity = GREATEST(quantity - $3, 0)
		WHERE event_id = $1 AND participant_id = $2
	`, eventID, participantID, quantity); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to release purchase quota: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) CreateRegistration(ctx context.Context, reg *model.Registration) (int64, error) {
	cols, err := registrationColumns(reg)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.Master.QueryRowContext(ctx, `
		INSERT INTO registrations (event_id, participant_id, participant_name, participant_email, status,
		                           payment_status, payment_proof_status, amount, custom_form_data,
		                           merchandise_order, created_at, updated_at)
		SELECT e.id, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		FROM events e
		WHERE e.id = $1 AND e.status = 'published'
		RETURNING id
	`, reg.EventID, reg.ParticipantID, reg.ParticipantName, reg.ParticipantEmail, string(reg.Status),
		string(reg.PaymentStatus), string(reg.PaymentProofStatus), reg.Amount, cols.form, cols.order,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.registrationRefusal(ctx, reg.EventID, ErrRegistrationClosed)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return 0, ErrDuplicateRegistration
		}
		return 0, fmt.Errorf("failed to create registration: %w", err)
	}
	return id, nil
}

const registrationSelect = `
	SELECT r.id, r.event_id, r.participant_id, r.participant_name, r.participant_email, r.status,
	       r.payment_status, r.payment_proof, r.payment_proof_status, r.amount, r.custom_form_data,
	       r.merchandise_order, COALESCE(t.id, ''), r.attended, r.attendance_marked_at,
	       r.created_at, r.updated_at
	FROM registrations r
	LEFT JOIN tickets t ON t.registration_id = r.id
`

func (r *repository) GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.Master.QueryRowContext(ctx, registrationSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *repository) GetActiveRegistration(ctx context.Context, eventID int64, participantID string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.Master.QueryRowContext(ctx, registrationSelect+`
		WHERE r.event_id = $1 AND r.participant_id = $2 AND r.status <> 'cancelled'
		ORDER BY r.created_at DESC LIMIT 1
	`, eventID, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *repository) GetRegistrationsByEventID(ctx context.Context, eventID int64) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, registrationSelect+`
		WHERE r.event_id = $1
		ORDER BY r.created_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// casRegistration runs a guarded UPDATE and reloads the row. A miss is
// reported as ErrRegistrationNotFound or ErrStatusConflict.
func (r *repository) casRegistration(ctx context.Context, id int64, query string, args ...any) (*model.Registration, error) {
	res, err := r.db.Master.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	reg, err := r.GetRegistrationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return reg, ErrStatusConflict
	}
	return reg, nil
}

func (r *repository) ConfirmRegistrationTx(ctx context.Context, id int64) (*model.Registration, error) {
	return r.casRegistration(ctx, id, `
		UPDATE registrations
		SET status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_status = 'not_applicable'
	`)
}

func (r *repository) SubmitPaymentProofTx(ctx context.Context, id int64, proof string) (*model.Registration, error) {
	return r.casRegistration(ctx, id, `
		UPDATE registrations
		SET payment_proof = $2, payment_proof_status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		  AND payment_status <> 'not_applicable' AND payment_proof_status <> 'approved'
	`, proof)
}

func (r *repository) ResolvePaymentTx(ctx context.Context, id int64, approve bool) (*model.Registration, error) {
	if approve {
		return r.casRegistration(ctx, id, `
			UPDATE registrations
			SET status = 'confirmed', payment_status = 'paid', payment_proof_status = 'approved', updated_at = NOW()
			WHERE id = $1 AND status = 'pending' AND payment_proof_status = 'pending'
		`)
	}
	return r.casRegistration(ctx, id, `
		UPDATE registrations
		SET payment_proof_status = 'rejected', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_proof_status = 'pending'
	`)
}

func (r *repository) CancelRegistrationTx(ctx context.Context, id int64) (*model.Registration, error) {
	return r.casRegistration(ctx, id, `
		UPDATE registrations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed') AND attended = FALSE
	`)
}

func (r *repository) CancelIfNotConfirmedTx(ctx context.Context, registrationID int64) (bool, error) {
	res, err := r.db.Master.ExecContext(ctx, `
		UPDATE registrations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_proof_status IN ('none', 'rejected')
	`, registrationID)
	if err != nil {
		return false, fmt.Errorf("failed to update registration status to cancelled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *repository) MarkAttendedTx(ctx context.Context, id int64, at time.Time) (bool, *model.Registration, error) {
	reg, err := r.casRegistration(ctx, id, `
		UPDATE registrations
		SET attended = TRUE, attendance_marked_at = $2, updated_at = NOW()
		WHERE id = $1 AND attended = FALSE AND status = 'confirmed'
	`, at)
	switch {
	case err == nil:
		return true, reg, nil
	case errors.Is(err, ErrStatusConflict) && reg.Attended:
		return false, reg, nil
	default:
		return false, reg, err
	}
}

func (r *repository) OverrideAttendanceTx(ctx context.Context, audit model.AttendanceAudit) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var markedAt sql.NullTime
	if audit.Attended {
		markedAt = sql.NullTime{Time: audit.CreatedAt, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET attended = $2, attendance_marked_at = $3, updated_at = NOW()
		WHERE id = $1
	`, audit.RegistrationID, audit.Attended, markedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to override attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return nil, ErrRegistrationNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_audit (registration_id, attended, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, audit.RegistrationID, audit.Attended, audit.Reason, audit.ActorID, audit.CreatedAt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to write attendance audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return r.GetRegistrationByID(ctx, audit.RegistrationID)
}

func (r *repository) GetAttendanceAudit(ctx context.Context, registrationID int64) ([]model.AttendanceAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, registration_id, attended, reason, actor_id, created_at
		FROM attendance_audit
		WHERE registration_id = $1
		ORDER BY id ASC
	`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance audit: %w", err)
	}
	defer rows.Close()

	var out []model.AttendanceAudit
	for rows.Next() {
		var a model.AttendanceAudit
		if err := rows.Scan(&a.ID, &a.RegistrationID, &a.Attended, &a.Reason, &a.ActorID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance audit: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) CreateTicket(ctx context.Context, t *model.Ticket) error {
	_, err := r.db.Master.ExecContext(ctx, `
		INSERT INTO tickets (id, registration_id, event_id, qr_payload, issued_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.RegistrationID, t.EventID, t.QRPayload, t.IssuedAt)
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		if pqErr.Constraint == "tickets_pkey" {
			return ErrTicketIDTaken
		}
		return ErrTicketExists
	}
	return fmt.Errorf("failed to create ticket: %w", err)
}

const ticketSelect = `SELECT id, registration_id, event_id, qr_payload, issued_at FROM tickets`

func (r *repository) GetTicketByID(ctx context.Context, id string) (*model.Ticket, error) {
	return r.getTicket(ctx, ticketSelect+` WHERE id = $1`, id)
}

func (r *repository) GetTicketByRegistrationID(ctx context.Context, registrationID int64) (*model.Ticket, error) {
	return r.getTicket(ctx, ticketSelect+` WHERE registration_id = $1`, registrationID)
}

func (r *repository) getTicket(ctx context.Context, query string, arg any) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.Master.QueryRowContext(ctx, query, arg).
		Scan(&t.ID, &t.RegistrationID, &t.EventID, &t.QRPayload, &t.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &t, nil
}

func (r *repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.db.Master.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}
