package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/model"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventFull            = errors.New("event is full")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrAdminNotFound        = errors.New("admin user not found")
	ErrDuplicateAdmin       = errors.New("admin user already exists")
)

// Postgres error classes the handlers distinguish for friendlier messages.
const (
	sqlstatePermissionDenied = "42501"
	sqlstateForeignKey       = "23503"
	sqlstateUniqueViolation  = "23505"
)

func IsPermissionDenied(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == sqlstatePermissionDenied
}

func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == sqlstateForeignKey
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == sqlstateUniqueViolation
}

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) (string, error)
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id string) error

	CreateRegistrationTx(ctx context.Context, reg *model.Registration, eventID string) (string, error)
	GetAllRegistrations(ctx context.Context) ([]model.Registration, error)
	GetRegistrationByID(ctx context.Context, id string) (*model.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id, status string) error
	DeleteRegistration(ctx context.Context, id string) error
	DeleteAllRegistrations(ctx context.Context) (int64, error)

	CreateAdminUser(ctx context.Context, u *model.AdminUser) (string, error)
	GetAdminUserByEmail(ctx context.Context, email string) (*model.AdminUser, error)

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

const eventColumns = `
	id, title, description, event_type, date, time, location, price,
	capacity, registered, image, features, long_description, organizer,
	created_at, updated_at
`

func scanEventRow(scan func(dest ...any) error) (*model.Event, error) {
	var row model.EventRow
	if err := scan(
		&row.ID,
		&row.Title,
		&row.Description,
		&row.EventType,
		&row.Date,
		&row.Time,
		&row.Location,
		&row.Price,
		&row.Capacity,
		&row.Registered,
		&row.Image,
		pq.Array(&row.Features),
		&row.LongDescription,
		&row.Organizer,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e := row.ToEvent()
	return &e, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (string, error) {
	query := `
		INSERT INTO events (id, title, description, event_type, date, time, location,
		                    price, capacity, registered, image, features,
		                    long_description, organizer)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7,
		        $8, $9, $10, NULLIF($11, ''), $12, NULLIF($13, ''), NULLIF($14, ''))
		RETURNING id
	`

	row := r.db.QueryRowContext(ctx, query,
		uuid.New().String(), e.Title, e.Description, e.EventType, e.Date, e.Time, e.Location,
		e.Price.String(), e.Capacity, e.Registered, e.Image, pq.Array(e.Features),
		e.LongDescription, e.Organizer,
	)

	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

func (r *repository) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	e, err := scanEventRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEventRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}

	return events, rows.Err()
}

func (r *repository) UpdateEvent(ctx context.Context, e *model.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = NULLIF($2, ''), event_type = NULLIF($3, ''),
		    date = $4, time = $5, location = $6, price = $7, capacity = $8,
		    image = NULLIF($9, ''), features = $10,
		    long_description = NULLIF($11, ''), organizer = NULLIF($12, ''),
		    updated_at = NOW()
		WHERE id = $13
		RETURNING id
	`

	var id string
	if err := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, e.EventType, e.Date, e.Time, e.Location,
		e.Price.String(), e.Capacity, e.Image, pq.Array(e.Features),
		e.LongDescription, e.Organizer, e.ID,
	).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// DeleteEvent removes the event row only. Registrations keep their copied
// event label, so deleting an event never cascades.
func (r *repository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// CreateRegistrationTx inserts the registration and bumps the owning
// event's registered counter in one transaction. The event row is locked so
// two concurrent submissions cannot both take the last spot.
func (r *repository) CreateRegistrationTx(ctx context.Context, reg *model.Registration, eventID string) (string, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var capacity, registered int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(capacity, 100), COALESCE(registered, 0)
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&capacity, &registered)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrEventNotFound
		}
		return "", fmt.Errorf("failed to lock event: %w", err)
	}

	if registered >= capacity {
		_ = tx.Rollback()
		return "", ErrEventFull
	}

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO registrations (id, full_name, email, phone, event_type,
		                           ticket_type, status, special_requests, newsletter)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id
	`, uuid.New().String(), reg.FullName, reg.Email, reg.Phone, reg.EventType,
		reg.TicketType, reg.Status, reg.SpecialRequests, reg.Newsletter,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("failed to create registration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registered = COALESCE(registered, 0) + 1, updated_at = NOW()
		WHERE id = $1
	`, eventID); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("failed to increment registered count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

const registrationColumns = `
	id, full_name, email, COALESCE(phone, ''), event_type, ticket_type,
	status, COALESCE(special_requests, ''), newsletter, created_at, updated_at
`

func scanRegistration(scan func(dest ...any) error) (*model.Registration, error) {
	var reg model.Registration
	if err := scan(
		&reg.ID,
		&reg.FullName,
		&reg.Email,
		&reg.Phone,
		&reg.EventType,
		&reg.TicketType,
		&reg.Status,
		&reg.SpecialRequests,
		&reg.Newsletter,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *repository) GetAllRegistrations(ctx context.Context) ([]model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}

	return regs, rows.Err()
}

func (r *repository) GetRegistrationByID(ctx context.Context, id string) (*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	reg, err := scanRegistration(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *repository) UpdateRegistrationStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE registrations
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id
	`

	var updated string
	if err := r.db.QueryRowContext(ctx, query, status, id).Scan(&updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return nil
}

func (r *repository) DeleteRegistration(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// DeleteAllRegistrations is the bulk path. Permission errors surface to the
// caller unwrapped so the service can fall back to per-row deletes.
func (r *repository) DeleteAllRegistrations(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations`)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected, nil
}

func (r *repository) CreateAdminUser(ctx context.Context, u *model.AdminUser) (string, error) {
	query := `
		INSERT INTO admin_users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id string
	if err := r.db.QueryRowContext(ctx, query, uuid.New().String(), u.Email, u.PasswordHash).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateAdmin
		}
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}
	return id, nil
}

func (r *repository) GetAdminUserByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM admin_users
		WHERE email = $1
	`
	row := r.db.QueryRowContext(ctx, query, email)

	var u model.AdminUser
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &u, nil
}
