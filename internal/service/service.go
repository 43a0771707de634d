package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/catalog"
	"eventhub/internal/dto"
	"eventhub/internal/export"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/pkg/validator"
)

// Revenue shown on the dashboard assumes a flat amount per paid ticket.
const revenuePerPaidTicket = 50

// Publisher is the slice of the queue client the service needs.
type Publisher interface {
	Publish(message []byte) error
}

type Service interface {
	GetCatalog(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	Contact(ctx *ginext.Context)

	SignUp(ctx *ginext.Context)
	Login(ctx *ginext.Context)
	Logout(ctx *ginext.Context)

	CreateEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)
	GetRegistrations(ctx *ginext.Context)
	UpdateRegistrationStatus(ctx *ginext.Context)
	DeleteRegistration(ctx *ginext.Context)
	DeleteAllRegistrations(ctx *ginext.Context)
	ExportRegistrations(ctx *ginext.Context)
	GetStats(ctx *ginext.Context)
}

type service struct {
	repo   repo.Repository
	log    *zerolog.Logger
	rbt    Publisher
	tokens *auth.Manager
}

func NewService(repo repo.Repository, logger *zerolog.Logger, rbt Publisher, tokens *auth.Manager) Service {
	return &service{
		repo:   repo,
		log:    logger,
		rbt:    rbt,
		tokens: tokens,
	}
}

// GetCatalog lists events with the public view's free-text query, category
// selector and fixed-size pagination applied server-side.
func (s *service) GetCatalog(ctx *ginext.Context) {
	page := 1
	if p := ctx.Query("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid page number")
			return
		}
		page = parsed
	}

	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load events")
		dto.InternalServerError(ctx)
		return
	}

	filtered := catalog.Filter(events, ctx.Query("query"), ctx.Query("category"))
	pageItems, totalPages := catalog.Paginate(filtered, page)

	resp := dto.EventListResponse{
		Events:     make([]dto.EventResponse, 0, len(pageItems)),
		Total:      len(filtered),
		Page:       page,
		TotalPages: totalPages,
	}
	for _, e := range pageItems {
		resp.Events = append(resp.Events, dto.NewEventResponse(e))
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetEvent(ctx *ginext.Context) {
	event, err := s.repo.GetEventByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	dto.SuccessResponse(ctx, dto.NewEventResponse(*event))
}

// Register handles an attendee's submission: terms and required fields
// first, then ticket-type derivation from the event's normalized price,
// then a transactional insert that also claims a spot.
func (s *service) Register(ctx *ginext.Context) {
	var req dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if !req.AgreeToTerms {
		dto.TermsNotAcceptedError(ctx)
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	registration := &model.Registration{
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		EventType:       event.EventType,
		TicketType:      model.TicketTypeFor(event.Price),
		Status:          model.StatusConfirmed,
		SpecialRequests: req.SpecialRequests,
		Newsletter:      req.SubscribeNewsletter,
	}

	id, err := s.repo.CreateRegistrationTx(ctx.Request.Context(), registration, event.ID)
	if err != nil {
		switch err {
		case repo.ErrEventNotFound:
			dto.EventNotFoundError(ctx)
		case repo.ErrEventFull:
			dto.EventFullError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to create registration")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().Str("registration_id", id).Msg("registration created successfully")

	s.queueMail(dto.MailJob{
		Kind:       dto.MailRegistrationConfirmed,
		To:         registration.Email,
		EventTitle: event.Title,
		FullName:   registration.FullName,
		TicketType: registration.TicketType,
	})

	dto.SuccessCreatedResponse(ctx, dto.ConfirmationResponse{
		RegistrationID: id,
		EventTitle:     event.Title,
		EventDate:      event.Date,
		EventTime:      event.Time,
		EventLocation:  event.Location,
		EventType:      event.EventType,
		FullName:       registration.FullName,
		Email:          registration.Email,
		TicketType:     registration.TicketType,
	})
}

// Contact queues a contact-form message for the mail worker and returns
// immediately.
func (s *service) Contact(ctx *ginext.Context) {
	var req dto.ContactRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	s.queueMail(dto.MailJob{
		Kind:      dto.MailContact,
		FromName:  req.Name,
		FromEmail: req.Email,
		Subject:   req.Subject,
		Body:      req.Message,
	})

	dto.SuccessResponse(ctx, nil)
}

func (s *service) queueMail(job dto.MailJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal mail job")
		return
	}
	if err := s.rbt.Publish(payload); err != nil {
		s.log.Error().Err(err).Msg("failed to publish mail job")
	}
}

func (s *service) SignUp(ctx *ginext.Context) {
	var req dto.CredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to hash password")
		dto.InternalServerError(ctx)
		return
	}

	if _, err := s.repo.CreateAdminUser(ctx.Request.Context(), &model.AdminUser{
		Email:        req.Email,
		PasswordHash: hash,
	}); err != nil {
		if err == repo.ErrDuplicateAdmin {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "An account with this email already exists")
			return
		}
		s.log.Error().Err(err).Msg("failed to create admin user")
		dto.InternalServerError(ctx)
		return
	}

	s.issueToken(ctx, req.Email, true)
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.CredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	user, err := s.repo.GetAdminUserByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		if err == repo.ErrAdminNotFound {
			dto.UnauthorizedError(ctx, "Invalid email or password")
			return
		}
		s.log.Error().Err(err).Msg("failed to load admin user")
		dto.InternalServerError(ctx)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		dto.UnauthorizedError(ctx, "Invalid email or password")
		return
	}

	s.issueToken(ctx, user.Email, false)
}

func (s *service) issueToken(ctx *ginext.Context, email string, created bool) {
	token, err := s.tokens.IssueToken(email)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue session token")
		dto.InternalServerError(ctx)
		return
	}

	resp := dto.TokenResponse{
		Token:     token,
		Email:     email,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}
	if created {
		dto.SuccessCreatedResponse(ctx, resp)
		return
	}
	dto.SuccessResponse(ctx, resp)
}

// Logout only acknowledges: session tokens are not revoked server-side.
func (s *service) Logout(ctx *ginext.Context) {
	dto.SuccessResponse(ctx, nil)
}

func (s *service) bindEventRequest(ctx *ginext.Context) (*model.Event, bool) {
	var req dto.EventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return nil, false
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return nil, false
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = model.DefaultCapacity
	}
	price := req.Price
	if price == "" {
		price = "Free"
	}

	return &model.Event{
		Title:           req.Title,
		Description:     req.Description,
		EventType:       req.EventType,
		Date:            req.Date,
		Time:            req.Time,
		Location:        req.Location,
		Price:           model.ParsePrice(price),
		Capacity:        capacity,
		Image:           req.Image,
		Features:        req.Features,
		LongDescription: req.LongDescription,
		Organizer:       req.Organizer,
	}, true
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	event, ok := s.bindEventRequest(ctx)
	if !ok {
		return
	}

	id, err := s.repo.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("event_id", id).Msg("event created successfully")

	created, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload created event")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessCreatedResponse(ctx, dto.NewEventResponse(*created))
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	event, ok := s.bindEventRequest(ctx)
	if !ok {
		return
	}
	event.ID = ctx.Param("id")

	if err := s.repo.UpdateEvent(ctx.Request.Context(), event); err != nil {
		if err == repo.ErrEventNotFound {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to update event")
		dto.InternalServerError(ctx)
		return
	}

	updated, err := s.repo.GetEventByID(ctx.Request.Context(), event.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload updated event")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, dto.NewEventResponse(*updated))
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	id := ctx.Param("id")

	if err := s.repo.DeleteEvent(ctx.Request.Context(), id); err != nil {
		switch {
		case err == repo.ErrEventNotFound:
			dto.EventNotFoundError(ctx)
		case repo.IsForeignKeyViolation(err):
			dto.ForeignKeyViolationError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to delete event")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().Str("event_id", id).Msg("event deleted")
	dto.SuccessResponse(ctx, nil)
}

func (s *service) GetRegistrations(ctx *ginext.Context) {
	regs, err := s.repo.GetAllRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations")
		dto.InternalServerError(ctx)
		return
	}

	filtered := catalog.FilterRegistrations(regs, ctx.Query("search"))

	dto.SuccessResponse(ctx, dto.RegistrationListResponse{
		Registrations: filtered,
		Total:         len(regs),
	})
}

func (s *service) UpdateRegistrationStatus(ctx *ginext.Context) {
	var req dto.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if !model.ValidStatus(req.Status) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Status must be pending, confirmed or cancelled")
		return
	}

	id := ctx.Param("id")
	if err := s.repo.UpdateRegistrationStatus(ctx.Request.Context(), id, req.Status); err != nil {
		if err == repo.ErrRegistrationNotFound {
			dto.RegistrationNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to update registration status")
		dto.InternalServerError(ctx)
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload registration")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, reg)
}

func (s *service) DeleteRegistration(ctx *ginext.Context) {
	if err := s.repo.DeleteRegistration(ctx.Request.Context(), ctx.Param("id")); err != nil {
		switch {
		case err == repo.ErrRegistrationNotFound:
			dto.RegistrationNotFoundError(ctx)
		case repo.IsPermissionDenied(err):
			dto.PermissionDeniedError(ctx)
		case repo.IsForeignKeyViolation(err):
			dto.ForeignKeyViolationError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to delete registration")
			dto.InternalServerError(ctx)
		}
		return
	}

	dto.SuccessResponse(ctx, nil)
}

// DeleteAllRegistrations tries the bulk delete first. When the store
// rejects it for lack of permission, the currently-loaded registrations are
// deleted one by one, concurrently; the aggregate succeeds only if every
// row delete does.
func (s *service) DeleteAllRegistrations(ctx *ginext.Context) {
	count, err := s.repo.DeleteAllRegistrations(ctx.Request.Context())
	if err == nil {
		s.log.Info().Int64("deleted", count).Msg("all registrations deleted")
		dto.SuccessResponse(ctx, dto.BulkDeleteResponse{Deleted: int(count)})
		return
	}

	if !repo.IsPermissionDenied(err) {
		s.log.Error().Err(err).Msg("failed to delete all registrations")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Warn().Msg("bulk delete denied, falling back to per-row deletes")

	regs, err := s.repo.GetAllRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations for fallback delete")
		dto.InternalServerError(ctx)
		return
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(regs))
	for _, reg := range regs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.repo.DeleteRegistration(ctx.Request.Context(), id); err != nil {
				errCh <- err
			}
		}(reg.ID)
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		s.log.Error().Err(err).Msg("fallback delete failed")
		dto.PermissionDeniedError(ctx)
		return
	}

	s.log.Info().Int("deleted", len(regs)).Msg("all registrations deleted via fallback")
	dto.SuccessResponse(ctx, dto.BulkDeleteResponse{Deleted: len(regs), Fallback: true})
}

func (s *service) ExportRegistrations(ctx *ginext.Context) {
	regs, err := s.repo.GetAllRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations for export")
		dto.InternalServerError(ctx)
		return
	}

	if len(regs) == 0 {
		dto.BadResponseError(ctx, dto.NothingToExport, "No data to export")
		return
	}

	filename := export.Filename(time.Now())
	ctx.Header("Content-Type", export.ContentType)
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.Write(ctx.Writer, regs); err != nil {
		s.log.Error().Err(err).Msg("failed to write export")
	}
}

func (s *service) GetStats(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load events for stats")
		dto.InternalServerError(ctx)
		return
	}

	regs, err := s.repo.GetAllRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations for stats")
		dto.InternalServerError(ctx)
		return
	}

	paid := 0
	for _, r := range regs {
		if r.TicketType == model.TicketPaid {
			paid++
		}
	}

	dto.SuccessResponse(ctx, dto.StatsResponse{
		TotalEvents:        len(events),
		TotalRegistrations: len(regs),
		ActiveEvents:       len(events),
		Revenue:            float64(paid * revenuePerPaidTicket),
	})
}
