package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound        = "EVENT_NOT_FOUND"
	EventFull            = "EVENT_FULL"
	RegistrationNotFound = "REGISTRATION_NOT_FOUND"
	TermsNotAccepted     = "TERMS_NOT_ACCEPTED"
	Unauthorized         = "UNAUTHORIZED"
	PermissionDenied     = "PERMISSION_DENIED"
	ForeignKeyViolation  = "FOREIGN_KEY_VIOLATION"
	NothingToExport      = "NOTHING_TO_EXPORT"
)

type RegisterRequest struct {
	FullName            string `json:"full_name" validate:"required,min=3,max=255"`
	Email               string `json:"email" validate:"required,email"`
	Phone               string `json:"phone" validate:"required"`
	AgreeToTerms        bool   `json:"agree_to_terms"`
	SubscribeNewsletter bool   `json:"subscribe_newsletter"`
	SpecialRequests     string `json:"special_requests"`
}

type EventRequest struct {
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description"`
	EventType       string   `json:"event_type"`
	Date            string   `json:"date" validate:"required"`
	Time            string   `json:"time" validate:"required"`
	Location        string   `json:"location" validate:"required"`
	Price           string   `json:"price"`
	Capacity        int      `json:"capacity" validate:"omitempty,positive"`
	Image           string   `json:"image"`
	Features        []string `json:"features"`
	LongDescription string   `json:"long_description"`
	Organizer       string   `json:"organizer"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// MailJob is the fire-and-forget message published to the mail queue and
// consumed by the worker.
type MailJob struct {
	Kind       string `json:"kind"` // "registration_confirmed" or "contact"
	To         string `json:"to,omitempty"`
	EventTitle string `json:"event_title,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	TicketType string `json:"ticket_type,omitempty"`
	FromName   string `json:"from_name,omitempty"`
	FromEmail  string `json:"from_email,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
}

const (
	MailRegistrationConfirmed = "registration_confirmed"
	MailContact               = "contact"
)

type EventResponse struct {
	model.Event
	SpotsLeft  int  `json:"spots_left"`
	AlmostFull bool `json:"almost_full"`
	SoldOut    bool `json:"sold_out"`
}

func NewEventResponse(e model.Event) EventResponse {
	return EventResponse{
		Event:      e,
		SpotsLeft:  e.SpotsLeft(),
		AlmostFull: e.AlmostFull(),
		SoldOut:    e.SoldOut(),
	}
}

type EventListResponse struct {
	Events     []EventResponse `json:"events"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
}

// ConfirmationResponse is the transient snapshot handed to the success view
// after a registration; it is never persisted.
type ConfirmationResponse struct {
	RegistrationID string `json:"registration_id"`
	EventTitle     string `json:"event_title"`
	EventDate      string `json:"event_date"`
	EventTime      string `json:"event_time"`
	EventLocation  string `json:"event_location"`
	EventType      string `json:"event_type"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	TicketType     string `json:"ticket_type"`
}

type RegistrationListResponse struct {
	Registrations []model.Registration `json:"registrations"`
	Total         int                  `json:"total"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StatsResponse struct {
	TotalEvents        int     `json:"total_events"`
	TotalRegistrations int     `json:"total_registrations"`
	ActiveEvents       int     `json:"active_events"`
	Revenue            float64 `json:"revenue"`
}

type BulkDeleteResponse struct {
	Deleted  int  `json:"deleted"`
	Fallback bool `json:"fallback"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func UnauthorizedError(c *ginext.Context, desc string) {
	c.JSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: Unauthorized,
			Desc: desc,
		},
	})
}

func PermissionDeniedError(c *ginext.Context) {
	c.JSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: PermissionDenied,
			Desc: "Permission denied for this operation",
		},
	})
}

func ForeignKeyViolationError(c *ginext.Context) {
	BadResponseError(c, ForeignKeyViolation, "Cannot delete: record is referenced by other data")
}

func EventNotFoundError(c *ginext.Context) {
	BadResponseError(c, EventNotFound, "Event not found")
}

func EventFullError(c *ginext.Context) {
	BadResponseError(c, EventFull, "Event is sold out")
}

func RegistrationNotFoundError(c *ginext.Context) {
	BadResponseError(c, RegistrationNotFound, "Registration not found")
}

func TermsNotAcceptedError(c *ginext.Context) {
	BadResponseError(c, TermsNotAccepted, "Please agree to the terms and conditions")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
