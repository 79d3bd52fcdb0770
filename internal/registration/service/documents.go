package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"intake/internal/registration/models"
	"intake/internal/validation"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/sentinel"
)

// Upload is a file received for a registration step.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

type UploadResult struct {
	Document  models.StagedDocument
	Remaining int
}

// UploadDocument stores, validates and stages a document for step.
//
// The session lock is held shared and the step lock exclusively, so uploads
// for different steps of one session proceed in parallel while a second
// upload for the same step waits and then sees it staged.
func (s *Service) UploadDocument(ctx context.Context, sessionID id.SessionID, step int, upload Upload) (*UploadResult, error) {
	profile, ok := s.steps.Resolve(validation.StepCode(step))
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown document step")
	}
	canonical := int(profile.Code)
	if len(upload.Content) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "file is required")
	}

	releaseSession := s.locks.RLock(sessionKey(sessionID))
	defer releaseSession()
	releaseStep := s.locks.Lock(stepKey(sessionID, canonical))
	defer releaseStep()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, translateSessionErr(err, "load registration session")
	}
	if err := session.CanStage(canonical); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveUpload(start)
		}
	}()

	locator, err := s.blobs.Upload(ctx, upload.Content, upload.Name, upload.ContentType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	outcome := s.validator.Validate(ctx, profile.Code, validation.Document{
		Locator:     locator,
		Content:     upload.Content,
		ContentType: upload.ContentType,
	}, session.FullName)

	stepLabel := strconv.Itoa(canonical)
	if !outcome.Passed {
		s.discard(ctx, locator)
		if s.metrics != nil {
			s.metrics.IncrementDocumentRejected(stepLabel)
		}
		s.logAudit(ctx, audit.EventDocumentRejected,
			"session_id", sessionID.String(),
			"account_id", session.AccountID.String(),
			"step", canonical,
			"score", outcome.Score,
			"reason", string(outcome.Reason),
		)
		return nil, dErrors.Wrap(&RejectionError{
			Step:   canonical,
			Score:  outcome.Score,
			Reason: outcome.Reason,
		}, dErrors.CodeValidation, "document validation failed")
	}

	doc := models.StagedDocument{
		Step:        canonical,
		Locator:     locator,
		FileName:    upload.Name,
		ContentType: upload.ContentType,
		Score:       outcome.Score,
		UploadedAt:  s.now(ctx),
	}
	updated, err := s.sessions.AppendDocument(ctx, sessionID, doc)
	if err != nil {
		s.discard(ctx, locator)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, errStepStaged.Message)
		}
		return nil, translateSessionErr(err, "stage document")
	}

	if s.metrics != nil {
		s.metrics.IncrementDocumentStaged(stepLabel)
	}
	s.logAudit(ctx, audit.EventDocumentStaged,
		"session_id", sessionID.String(),
		"account_id", session.AccountID.String(),
		"step", canonical,
		"score", outcome.Score,
	)
	return &UploadResult{Document: doc, Remaining: updated.Remaining()}, nil
}
