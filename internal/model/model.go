package model

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCapacity  = 100
	DefaultEventType = "Event"
	PlaceholderImage = "/placeholder.svg"

	// An event is flagged "almost full" once this many spots or fewer remain.
	almostFullThreshold = 10
)

const (
	TicketFree = "free"
	TicketPaid = "paid"

	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Price is either the literal "Free" or a numeric amount. On the wire it
// marshals as the string "Free" or as a bare number, matching the stored
// text form of the price column.
type Price struct {
	Free   bool
	Amount float64
}

// ParsePrice normalizes stored price text. "free" in any casing is free, a
// parseable number is that amount, and anything else degrades to free
// rather than failing: the mapper must be total over persisted rows.
func ParsePrice(text string) Price {
	s := strings.TrimSpace(text)
	if strings.EqualFold(s, "free") {
		return Price{Free: true}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Price{Free: true}
	}
	return Price{Amount: n}
}

func (p Price) IsFree() bool { return p.Free }

func (p Price) String() string {
	if p.Free {
		return "Free"
	}
	return strconv.FormatFloat(p.Amount, 'f', -1, 64)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.Free {
		return json.Marshal("Free")
	}
	return json.Marshal(p.Amount)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var amount float64
	if err := json.Unmarshal(data, &amount); err == nil {
		*p = Price{Amount: amount}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*p = ParsePrice(text)
	return nil
}

// TicketTypeFor classifies a registration at submission time. The result is
// stored on the registration and never re-derived.
func TicketTypeFor(p Price) string {
	if p.IsFree() {
		return TicketFree
	}
	return TicketPaid
}

type Event struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description,omitempty" json:"description"`
	EventType       string    `db:"event_type" json:"event_type"`
	Date            string    `db:"date" json:"date"`
	Time            string    `db:"time" json:"time"`
	Location        string    `db:"location" json:"location"`
	Price           Price     `db:"price" json:"price"`
	Capacity        int       `db:"capacity" json:"capacity"`
	Registered      int       `db:"registered" json:"registered"`
	Image           string    `db:"image,omitempty" json:"image"`
	Features        []string  `db:"features,omitempty" json:"features,omitempty"`
	LongDescription string    `db:"long_description,omitempty" json:"long_description,omitempty"`
	Organizer       string    `db:"organizer,omitempty" json:"organizer,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SpotsLeft may go negative when persisted data oversells an event; callers
// treat anything non-positive as full.
func (e Event) SpotsLeft() int   { return e.Capacity - e.Registered }
func (e Event) SoldOut() bool    { return e.SpotsLeft() <= 0 }
func (e Event) AlmostFull() bool { return !e.SoldOut() && e.SpotsLeft() <= almostFullThreshold }

// EventRow is the raw persisted shape of an event, nullable fields and all.
type EventRow struct {
	ID              string
	Title           string
	Description     sql.NullString
	EventType       sql.NullString
	Date            string
	Time            string
	Location        string
	Price           sql.NullString
	Capacity        sql.NullInt64
	Registered      sql.NullInt64
	Image           sql.NullString
	Features        []string
	LongDescription sql.NullString
	Organizer       sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ToEvent maps a raw row to an application event. Total over any row shape:
// missing or invalid fields degrade to defaults, never to an error.
func (r EventRow) ToEvent() Event {
	e := Event{
		ID:        r.ID,
		Title:     r.Title,
		Date:      r.Date,
		Time:      r.Time,
		Location:  r.Location,
		Price:     ParsePrice(r.Price.String),
		Capacity:  DefaultCapacity,
		EventType: DefaultEventType,
		Image:     PlaceholderImage,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Description.Valid {
		e.Description = r.Description.String
	}
	if r.EventType.Valid && r.EventType.String != "" {
		e.EventType = r.EventType.String
	}
	if r.Capacity.Valid {
		e.Capacity = int(r.Capacity.Int64)
	}
	if r.Registered.Valid {
		e.Registered = int(r.Registered.Int64)
	}
	if r.Image.Valid && r.Image.String != "" {
		e.Image = r.Image.String
	}
	if len(r.Features) > 0 {
		e.Features = r.Features
	}
	if r.LongDescription.Valid {
		e.LongDescription = r.LongDescription.String
	}
	if r.Organizer.Valid {
		e.Organizer = r.Organizer.String
	}
	return e
}

type Registration struct {
	ID              string    `db:"id" json:"id"`
	FullName        string    `db:"full_name" json:"full_name"`
	Email           string    `db:"email" json:"email"`
	Phone           string    `db:"phone,omitempty" json:"phone,omitempty"`
	EventType       string    `db:"event_type" json:"event_type"`
	TicketType      string    `db:"ticket_type" json:"ticket_type"`
	Status          string    `db:"status" json:"status"`
	SpecialRequests string    `db:"special_requests,omitempty" json:"special_requests,omitempty"`
	Newsletter      bool      `db:"newsletter" json:"newsletter"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ValidStatus reports whether s is one of the three registration states.
// Any state is reachable from any other, so this is the only check needed.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCancelled
}

type AdminUser struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
