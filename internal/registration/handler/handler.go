// Package handler exposes the registration session over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"intake/internal/platform/middleware"
	ratelimit "intake/internal/ratelimit/models"
	"intake/internal/registration/models"
	"intake/internal/registration/service"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
	"intake/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const defaultUploadLimit = 10 << 20

// Service is the registration workflow as seen by the transport.
type Service interface {
	ValidateIdentity(ctx context.Context, current id.SessionID, nationalID string) (*service.IdentityResult, error)
	BindAccount(ctx context.Context, sessionID id.SessionID, req *models.AccountRequest) (*models.Person, error)
	UploadDocument(ctx context.Context, sessionID id.SessionID, step int, upload service.Upload) (*service.UploadResult, error)
	Submit(ctx context.Context, sessionID id.SessionID) (*models.Application, error)
	Status(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// RateLimiter builds per-class limiting middleware.
type RateLimiter interface {
	RateLimit(class ratelimit.EndpointClass) func(http.Handler) http.Handler
}

type Handler struct {
	registration Service
	tokens       middleware.TokenValidator
	limiter      RateLimiter
	logger       *slog.Logger
	uploadLimit  int64
}

type Option func(*Handler)

// WithUploadLimit caps the multipart body size in bytes.
func WithUploadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.uploadLimit = n
		}
	}
}

// WithRateLimiter limits identity lookups and uploads per client.
func WithRateLimiter(l RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func New(registration Service, tokens middleware.TokenValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		registration: registration,
		tokens:       tokens,
		logger:       logger,
		uploadLimit:  defaultUploadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the registration routes. The shared middleware chain
// (request ID, logging, recovery) is applied by the caller's router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registration", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.With(h.limit(ratelimit.ClassIdentity), middleware.OptionalRegistration(h.tokens)).
			Post("/identity", h.handleValidateIdentity)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRegistration(h.tokens, h.logger))
			r.Get("/", h.handleStatus)
			r.Post("/account", h.handleBindAccount)
			r.With(h.limit(ratelimit.ClassUpload)).Post("/documents", h.handleUploadDocument)
			r.Post("/submit", h.handleSubmit)
		})
	})
}

func (h *Handler) limit(class ratelimit.EndpointClass) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limiter.RateLimit(class)
}

func (h *Handler) handleValidateIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[identityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.registration.ValidateIdentity(ctx, requestcontext.SessionID(ctx), req.NationalID)
	if err != nil {
		h.writeError(ctx, w, "identity validation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(res))
}

func (h *Handler) handleBindAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[accountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	person, err := h.registration.BindAccount(ctx, requestcontext.SessionID(ctx), &req.AccountRequest)
	if err != nil {
		h.writeError(ctx, w, "account creation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID: person.ID.String(),
		FirstName: person.FirstName,
		LastName:  person.LastName,
		Age:       person.Age,
		Status:    person.Status,
	})
}

func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	upload, step, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(ctx, w, "invalid document upload", err)
		return
	}

	res, err := h.registration.UploadDocument(ctx, requestcontext.SessionID(ctx), step, upload)
	if err != nil {
		if rejection, ok := service.AsRejection(err); ok {
			h.logger.InfoContext(ctx, "document rejected",
				"request_id", middleware.GetRequestID(ctx),
				"step", rejection.Step,
				"score", rejection.Score,
			)
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, rejectionResponse{
				ErrorResponse: httputil.ErrorResponse{
					Error:            string(dErrors.CodeValidation),
					ErrorDescription: "document validation failed",
				},
				Step:   rejection.Step,
				Score:  rejection.Score,
				Reason: string(rejection.Reason),
			})
			return
		}
		h.writeError(ctx, w, "document upload failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, documentResponse{
		Step:      res.Document.Step,
		Score:     res.Document.Score,
		FileName:  res.Document.FileName,
		Remaining: res.Remaining,
	})
}

// readUpload parses the multipart form: a "step" field and a "file" part.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (service.Upload, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit)
	if err := r.ParseMultipartForm(h.uploadLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.Upload{}, 0, dErrors.New(dErrors.CodeBadRequest, "file exceeds upload limit")
		}
		return service.Upload{}, 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart form")
	}
	step, err := strconv.Atoi(r.FormValue("step"))
	if err != nil {
		return service.Upload{}, 0, dErrors.New(dErrors.CodeBadRequest, "step must be an integer")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return service.Upload{}, 0, dErrors.New(dErrors.CodeBadRequest, "file is required")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return service.Upload{}, 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read file")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	return service.Upload{Name: header.Filename, ContentType: contentType, Content: content}, step, nil
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	app, err := h.registration.Submit(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.writeError(ctx, w, "submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, submitResponse{
		ApplicationID: app.ID.String(),
		Title:         app.Title,
		Status:        app.Status,
		SubmittedAt:   app.SubmittedAt,
		ReviewDate:    app.ReviewDate,
		DecisionDate:  app.DecisionDate,
		Documents:     len(app.Documents),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.registration.Status(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.writeError(ctx, w, "status lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(session))
}

// writeError logs client errors at warn and everything else at error, then
// writes the translated response.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
