package dto

import (
	"time"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/lifecycle"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

type CreateEventRequest struct {
	Name                 string                    `json:"name" validate:"required,max=200"`
	Description          string                    `json:"description" validate:"max=5000"`
	Tags                 []string                  `json:"tags" validate:"max=20,dive,tag"`
	Type                 string                    `json:"type" validate:"omitempty,eventtype"`
	StartDate            time.Time                 `json:"start_date"`
	EndDate              time.Time                 `json:"end_date"`
	RegistrationDeadline time.Time                 `json:"registration_deadline" validate:"future"`
	RegistrationLimit    *int                      `json:"registration_limit" validate:"omitempty,positive"`
	RegistrationFee      int64                     `json:"registration_fee" validate:"gte=0"`
	Eligibility          string                    `json:"eligibility" validate:"eligibility"`
	CustomForm           []model.FormField         `json:"custom_form"`
	Merchandise          *model.MerchandiseDetails `json:"merchandise"`
	OrganizerID          string                    `json:"organizer_id"`
}

func (r CreateEventRequest) ToModel() *model.Event {
	return &model.Event{
		OrganizerID:          r.OrganizerID,
		Name:                 r.Name,
		Description:          r.Description,
		Tags:                 r.Tags,
		Type:                 model.EventType(r.Type),
		StartDate:            r.StartDate,
		EndDate:              r.EndDate,
		RegistrationDeadline: r.RegistrationDeadline,
		RegistrationLimit:    r.RegistrationLimit,
		RegistrationFee:      r.RegistrationFee,
		Eligibility:          model.Eligibility(r.Eligibility),
		CustomForm:           r.CustomForm,
		Merchandise:          r.Merchandise,
	}
}

type UpdateEventRequest struct {
	Name                   *string                   `json:"name" validate:"omitempty,max=200"`
	Description            *string                   `json:"description" validate:"omitempty,max=5000"`
	Tags                   *[]string                 `json:"tags" validate:"omitempty,max=20,dive,tag"`
	Type                   *string                   `json:"type" validate:"omitempty,eventtype"`
	StartDate              *time.Time                `json:"start_date"`
	EndDate                *time.Time                `json:"end_date"`
	RegistrationDeadline   *time.Time                `json:"registration_deadline"`
	RegistrationLimit      *int                      `json:"registration_limit" validate:"omitempty,positive"`
	UnlimitedRegistrations bool                      `json:"unlimited_registrations"`
	RegistrationFee        *int64                    `json:"registration_fee" validate:"omitempty,gte=0"`
	Eligibility            *string                   `json:"eligibility" validate:"omitempty,eligibility"`
	CustomForm             *[]model.FormField        `json:"custom_form"`
	Merchandise            *model.MerchandiseDetails `json:"merchandise"`
}

func (r UpdateEventRequest) ToPatch() lifecycle.Patch {
	p := lifecycle.Patch{
		Name:                   r.Name,
		Description:            r.Description,
		Tags:                   r.Tags,
		StartDate:              r.StartDate,
		EndDate:                r.EndDate,
		RegistrationDeadline:   r.RegistrationDeadline,
		RegistrationLimit:      r.RegistrationLimit,
		UnlimitedRegistrations: r.UnlimitedRegistrations,
		RegistrationFee:        r.RegistrationFee,
		CustomForm:             r.CustomForm,
		Merchandise:            r.Merchandise,
	}
	if r.Type != nil {
		t := model.EventType(*r.Type)
		p.Type = &t
	}
	if r.Eligibility != nil {
		el := model.Eligibility(*r.Eligibility)
		p.Eligibility = &el
	}
	return p
}

type RegisterRequest struct {
	CustomFormData   map[string]any          `json:"custom_form_data"`
	MerchandiseOrder *model.MerchandiseOrder `json:"merchandise_order"`
}

type PaymentProofRequest struct {
	PaymentProof string `json:"payment_proof" validate:"required"`
}

// VerifyPaymentRequest takes {"approved": bool}; {"decision": "approve"|"reject"}
// is accepted when approved is absent.
type VerifyPaymentRequest struct {
	Approved *bool  `json:"approved" validate:"required_without=Decision"`
	Decision string `json:"decision" validate:"omitempty,oneof=approve reject"`
}

func (r VerifyPaymentRequest) Approve() bool {
	if r.Approved != nil {
		return *r.Approved
	}
	return r.Decision == "approve"
}

// ScanRequest carries a ticket id or a full QR payload, under "ticketId" or
// its alias "code".
type ScanRequest struct {
	TicketID string `json:"ticketId" validate:"required_without=Code,max=256"`
	Code     string `json:"code" validate:"max=256"`
}

func (r ScanRequest) Value() string {
	if r.TicketID != "" {
		return r.TicketID
	}
	return r.Code
}

type OverrideAttendanceRequest struct {
	Attended *bool  `json:"attended" validate:"required"`
	Reason   string `json:"reason" validate:"required,max=500"`
}
