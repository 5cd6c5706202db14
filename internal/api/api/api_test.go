package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/auth"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/proofstore"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/service"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/ticket"
)

var (
	organizer = model.Actor{ID: "org-1", Role: model.RoleOrganizer}
	alice     = model.Actor{ID: "alice", Role: model.RoleParticipant, ParticipantType: model.ParticipantIIIT, Name: "Alice", Email: "alice@iiit.ac.in"}
	bob       = model.Actor{ID: "bob", Role: model.RoleParticipant, ParticipantType: model.ParticipantNonIIIT}
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code  string `json:"code"`
		Desc  string `json:"desc"`
		Field string `json:"field"`
	} `json:"error"`
}

type server struct {
	t       *testing.T
	handler http.Handler
	auth    *auth.Authenticator
}

func newServer(t *testing.T, svc service.Service) *server {
	t.Helper()
	log := zerolog.Nop()
	a, err := auth.New("test-secret", "")
	require.NoError(t, err)
	if svc == nil {
		store := repo.NewMemoryRepository()
		issuer := ticket.NewIssuer(store, ticket.ChecksumSigner{}, &log)
		svc = service.NewService(store, issuer, proofstore.NewMemoryStore(), nil, &log)
	}
	app := NewRouters(&Routers{Service: svc, Auth: a, Log: &log, Mode: "test"})
	return &server{t: t, handler: app, auth: a}
}

func (s *server) do(actor *model.Actor, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if raw, ok := body.(string); ok {
		buf.WriteString(raw)
	} else if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.send(actor, req)
}

func (s *server) send(actor *model.Actor, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if actor != nil {
		token, err := s.auth.Issue(*actor, time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	var env envelope
	if w.Header().Get("Content-Type") != "text/csv; charset=utf-8" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *server) publishedEvent(body map[string]any) int64 {
	s.t.Helper()
	w, env := s.do(&organizer, http.MethodPost, "/v1/events", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	e := decode[model.Event](s.t, env)
	w, _ = s.do(&organizer, http.MethodPost, "/v1/events/"+strconv.FormatInt(e.ID, 10)+"/publish", nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return e.ID
}

func eventBody(fee int64, limit int) map[string]any {
	start := time.Now().Add(72 * time.Hour).UTC()
	return map[string]any{
		"name":               "Robotics Workshop",
		"description":        "Build a line follower",
		"type":               "Normal",
		"start_date":         start,
		"end_date":           start.Add(4 * time.Hour),
		"registration_limit": limit,
		"registration_fee":   fee,
		"eligibility":        "All",
		"tags":               []string{"robotics"},
	}
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, nil)
	w, env := s.do(nil, http.MethodGet, "/v1/events", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestFreeRegistrationAndScan(t *testing.T) {
	s := newServer(t, nil)
	eventID := s.publishedEvent(eventBody(0, 1))

	w, env := s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[model.Registration](t, env)
	assert.Equal(t, model.RegistrationConfirmed, reg.Status)

	w, env = s.do(&bob, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), "{}")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "HOUSE_FULL", env.Error.Code)

	w, env = s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REGISTRATION_DUPLICATE", env.Error.Code)

	w, env = s.do(&alice, http.MethodGet, fmt.Sprintf("/v1/registrations/%d/ticket", reg.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	tk := decode[model.Ticket](t, env)
	assert.Equal(t, reg.TicketID, tk.ID)

	w, env = s.do(&alice, http.MethodPost, "/v1/tickets/scan", map[string]string{"code": tk.QRPayload})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	w, env = s.do(&organizer, http.MethodPost, "/v1/tickets/scan", map[string]string{"code": tk.QRPayload})
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[service.ScanResult](t, env)
	assert.True(t, first.Success)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "Alice", first.Participant.Name)

	w, env = s.do(&organizer, http.MethodPost, "/v1/tickets/scan", map[string]string{"code": tk.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[service.ScanResult](t, env).Duplicate)

	w, env = s.do(&organizer, http.MethodPost, "/v1/tickets/scan", map[string]string{"code": "FEL1." + tk.ID + ".00000000"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TICKET_NOT_RECOGNIZED", env.Error.Code)

	w, _ = s.do(&organizer, http.MethodGet, fmt.Sprintf("/v1/events/%d/attendance/export", eventID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "registration_id", records[0][0])
	assert.Equal(t, tk.ID, records[1][5])
	assert.Equal(t, "true", records[1][6])
}

func TestPaidRegistrationFlow(t *testing.T) {
	s := newServer(t, nil)
	eventID := s.publishedEvent(eventBody(300, 10))

	w, env := s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), map[string]any{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[model.Registration](t, env)
	assert.Equal(t, model.PaymentPending, reg.PaymentStatus)

	w, env = s.do(&organizer, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/verify-payment", reg.ID), map[string]string{"decision": "approve"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAYMENT_NOT_PENDING", env.Error.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("proof", "receipt.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/registrations/%d/payment", reg.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env = s.send(&alice, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.ProofPending, decode[model.Registration](t, env).PaymentProofStatus)

	w, _ = s.do(&organizer, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/verify-payment", reg.ID), map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = s.do(&organizer, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/verify-payment", reg.ID), map[string]string{"decision": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[model.Registration](t, env)
	assert.Equal(t, model.RegistrationConfirmed, approved.Status)
	assert.NotEmpty(t, approved.TicketID)

	w, env = s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/payment", reg.ID), map[string]string{"payment_proof": "s3://late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAYMENT_NOT_PENDING", env.Error.Code)
}

func TestApprovedAndTicketIDBodies(t *testing.T) {
	s := newServer(t, nil)
	eventID := s.publishedEvent(eventBody(150, 10))

	_, env := s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), nil)
	reg := decode[model.Registration](t, env)
	verifyPath := fmt.Sprintf("/v1/registrations/%d/verify-payment", reg.ID)
	proofPath := fmt.Sprintf("/v1/registrations/%d/payment", reg.ID)

	w, _ := s.do(&organizer, http.MethodPost, verifyPath, map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(&alice, http.MethodPost, proofPath, map[string]string{"payment_proof": "upi:txn-001"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, env = s.do(&organizer, http.MethodPost, verifyPath, map[string]any{"approved": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decode[model.Registration](t, env)
	assert.Equal(t, model.ProofRejected, rejected.PaymentProofStatus)
	assert.Equal(t, model.RegistrationPending, rejected.Status)

	w, _ = s.do(&alice, http.MethodPost, proofPath, map[string]string{"payment_proof": "upi:txn-002"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, env = s.do(&organizer, http.MethodPost, verifyPath, map[string]any{"approved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[model.Registration](t, env)
	assert.Equal(t, model.RegistrationConfirmed, approved.Status)
	require.NotEmpty(t, approved.TicketID)

	w, _ = s.do(&organizer, http.MethodPost, "/v1/tickets/scan", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = s.do(&organizer, http.MethodPost, "/v1/tickets/scan", map[string]string{"ticketId": approved.TicketID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.ScanResult](t, env)
	assert.True(t, res.Success)
	assert.False(t, res.Duplicate)
	assert.Equal(t, approved.TicketID, res.Participant.TicketID)
}

func TestEventEditingAndErrors(t *testing.T) {
	s := newServer(t, nil)
	eventID := s.publishedEvent(eventBody(0, 5))

	w, env := s.do(&organizer, http.MethodPatch, fmt.Sprintf("/v1/events/%d", eventID), map[string]any{"name": "New name"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "FIELD_NOT_WRITABLE", env.Error.Code)

	w, env = s.do(&organizer, http.MethodPatch, fmt.Sprintf("/v1/events/%d", eventID), map[string]any{"registration_limit": 8})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 8, *decode[model.Event](t, env).RegistrationLimit)

	w, _ = s.do(&alice, http.MethodPatch, fmt.Sprintf("/v1/events/%d", eventID), map[string]any{"description": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(&organizer, http.MethodPost, "/v1/events", `{"name": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FIELD_BADFORMAT", env.Error.Code)

	w, _ = s.do(&organizer, http.MethodPost, "/v1/events", map[string]any{"name": "x", "type": "Concert"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(&organizer, http.MethodGet, "/v1/events/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(&organizer, http.MethodGet, "/v1/events/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "EVENT_NOT_FOUND", env.Error.Code)

	w, env = s.do(&alice, http.MethodGet, "/v1/events?status=published", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Event](t, env), 1)

	w, _ = s.do(&organizer, http.MethodPost, fmt.Sprintf("/v1/events/%d/close", eventID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REGISTRATION_CLOSED", env.Error.Code)
}

func TestManualOverride(t *testing.T) {
	s := newServer(t, nil)
	eventID := s.publishedEvent(eventBody(0, 5))
	_, env := s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/events/%d/register", eventID), nil)
	reg := decode[model.Registration](t, env)

	w, _ := s.do(&organizer, http.MethodPost, fmt.Sprintf("/v1/events/%d/attendance/%d", eventID, reg.ID), map[string]any{"attended": true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = s.do(&organizer, http.MethodPost, fmt.Sprintf("/v1/events/%d/attendance/%d", eventID, reg.ID),
		map[string]any{"attended": true, "reason": "QR damaged"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[model.Registration](t, env).Attended)

	w, env = s.do(&organizer, http.MethodGet, fmt.Sprintf("/v1/registrations/%d/attendance-audit", reg.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	audit := decode[[]model.AttendanceAudit](t, env)
	require.Len(t, audit, 1)
	assert.Equal(t, "QR damaged", audit[0].Reason)

	w, env = s.do(&alice, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/cancel", reg.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotNil(t, env.Error)
}

type mockService struct {
	mock.Mock
	service.Service
}

func (m *mockService) Scan(ctx context.Context, actor model.Actor, code string) (*service.ScanResult, error) {
	args := m.Called(ctx, actor, code)
	res, _ := args.Get(0).(*service.ScanResult)
	return res, args.Error(1)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	svc := &mockService{}
	svc.On("Scan", mock.Anything, organizer, "TKT-X").Return(nil, errors.New("connection reset by peer"))
	s := newServer(t, svc)

	w, env := s.do(&organizer, http.MethodPost, "/v1/tickets/scan", map[string]string{"code": "TKT-X"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	svc.AssertExpectations(t)
}
