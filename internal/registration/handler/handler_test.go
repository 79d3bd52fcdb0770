package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"intake/internal/platform/middleware"
	ratelimitmw "intake/internal/ratelimit/middleware"
	ratelimit "intake/internal/ratelimit/models"
	"intake/internal/ratelimit/store/bucket"
	"intake/internal/registration/handler/mocks"
	"intake/internal/registration/models"
	"intake/internal/registration/service"
	"intake/internal/registration/token"
	"intake/internal/validation"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	service   *mocks.MockService
	tokens    *token.Service
	router    chi.Router
	sessionID id.SessionID
	bearer    string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.tokens = token.New("handler-test-key")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	New(s.service, s.tokens, logger, WithUploadLimit(1<<10)).Register(s.router)

	s.sessionID = id.NewSessionID()
	tok, err := s.tokens.Issue(s.sessionID, time.Hour)
	s.Require().NoError(err)
	s.bearer = "Bearer " + tok
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", s.bearer)
	return req
}

func (s *HandlerSuite) TestValidateIdentity() {
	s.Run("anonymous caller opens a session", func() {
		expires := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		opened := id.NewSessionID()
		s.service.EXPECT().ValidateIdentity(gomock.Any(), id.SessionID{}, "29801011234567").
			Return(&service.IdentityResult{Status: models.IdentityValidated, Token: "tok", SessionID: opened, ExpiresAt: expires}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/identity", map[string]string{"national_id": "29801011234567"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal("validated", (*body)["status"])
		s.Equal("tok", (*body)["registration_token"])
		s.Equal(opened.String(), (*body)["session_id"])
	})

	s.Run("token holder passes its session", func() {
		s.service.EXPECT().ValidateIdentity(gomock.Any(), s.sessionID, "29801011234567").
			Return(&service.IdentityResult{Status: models.IdentityPending}, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/identity", map[string]string{"national_id": "29801011234567"}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal("pending", (*body)["status"])
		s.NotContains(*body, "registration_token")
	})

	s.Run("missing national ID", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/identity", map[string]string{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("roster miss is 404", func() {
		s.service.EXPECT().ValidateIdentity(gomock.Any(), gomock.Any(), "1234567").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "national ID not found"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/identity", map[string]string{"national_id": "1234567"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("national ID not found", body["error_description"])
	})
}

func (s *HandlerSuite) TestRequiresRegistrationToken() {
	for _, path := range []string{"/registration/account", "/registration/submit", "/registration/documents"} {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	}

	req := testutil.NewRequest(s.T(), http.MethodGet, "/registration")
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestBindAccount() {
	payload := map[string]string{
		"first_name":    "Sara",
		"last_name":     "Mahmoud",
		"username":      "sara",
		"email":         " Sara@Example.com ",
		"password":      "correct-horse",
		"date_of_birth": "1998-01-01",
	}

	s.Run("normalizes and creates", func() {
		accountID := id.NewAccountID()
		s.service.EXPECT().BindAccount(gomock.Any(), s.sessionID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.SessionID, req *models.AccountRequest) (*models.Person, error) {
				s.Equal("sara@example.com", req.Email)
				return &models.Person{ID: accountID, FirstName: "Sara", LastName: "Mahmoud", Age: 28, Status: models.StatusIncomplete}, nil
			})

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/account", payload)))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal(accountID.String(), (*body)["account_id"])
		s.Equal("incomplete", (*body)["registration_status"])
	})

	s.Run("invalid body never reaches the service", func() {
		bad := map[string]string{"first_name": "Sara"}
		rr := testutil.DoRequest(s.router, s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/account", bad)))
		testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
	})

	s.Run("duplicate email is 409", func() {
		s.service.EXPECT().BindAccount(gomock.Any(), s.sessionID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "email already registered"))
		rr := testutil.DoRequest(s.router, s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/account", payload)))
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	})
}

func (s *HandlerSuite) uploadRequest(step, fileName string, content []byte) *http.Request {
	return s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/registration/documents",
		map[string]string{"step": step}, "file", fileName, "image/jpeg", content))
}

func (s *HandlerSuite) TestUploadDocument() {
	s.Run("staged document", func() {
		s.service.EXPECT().UploadDocument(gomock.Any(), s.sessionID, 4, service.Upload{
			Name: "front.jpg", ContentType: "image/jpeg", Content: []byte("jpeg"),
		}).Return(&service.UploadResult{
			Document:  models.StagedDocument{Step: 4, FileName: "front.jpg", Score: 81.82},
			Remaining: 1,
		}, nil)

		rr := testutil.DoRequest(s.router, s.uploadRequest("4", "front.jpg", []byte("jpeg")))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[documentResponse](s.T(), rr)
		s.Equal(81.82, body.Score)
		s.Equal(1, body.Remaining)
	})

	s.Run("rejection carries the score", func() {
		s.service.EXPECT().UploadDocument(gomock.Any(), s.sessionID, 6, gomock.Any()).Return(nil,
			dErrors.Wrap(&service.RejectionError{Step: 6, Score: 0, Reason: validation.ReasonNameGate},
				dErrors.CodeValidation, "document validation failed"))

		rr := testutil.DoRequest(s.router, s.uploadRequest("6", "birth.jpg", []byte("jpeg")))

		testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
		body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal("validation_error", (*body)["error"])
		s.Equal("document validation failed", (*body)["error_description"])
		s.Equal(float64(0), (*body)["score"])
		s.Equal("name_gate", (*body)["reason"])
	})

	s.Run("non-numeric step", func() {
		rr := testutil.DoRequest(s.router, s.uploadRequest("front", "front.jpg", []byte("jpeg")))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("missing file part", func() {
		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/registration/documents",
			map[string]string{"step": "4"}, "", "", "", nil))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		s.Equal("file is required", testutil.UnmarshalErrorResponse(s.T(), rr)["error_description"])
	})

	s.Run("oversized upload", func() {
		rr := testutil.DoRequest(s.router, s.uploadRequest("4", "big.jpg", bytes.Repeat([]byte("x"), 4<<10)))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("infrastructure failure hides details", func() {
		s.service.EXPECT().UploadDocument(gomock.Any(), s.sessionID, 8, gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("bucket gone"), dErrors.CodeInternal, "failed to store document"))

		rr := testutil.DoRequest(s.router, s.uploadRequest("8", "me.jpg", []byte("jpeg")))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(testutil.UnmarshalErrorResponse(s.T(), rr), "error_description")
	})
}

func (s *HandlerSuite) TestSubmit() {
	s.Run("created application", func() {
		now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
		app := models.NewApplication(id.NewApplicationID(), id.NewAccountID(), []models.StagedDocument{{Step: 4}, {Step: 5}}, now)
		s.service.EXPECT().Submit(gomock.Any(), s.sessionID).Return(app, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit", nil))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[submitResponse](s.T(), rr)
		s.Equal(app.ID.String(), body.ApplicationID)
		s.Equal(models.ApplicationTitle, body.Title)
		s.Equal(2, body.Documents)
		s.True(now.AddDate(0, 1, 0).Equal(body.DecisionDate))
	})

	s.Run("bare post without content type", func() {
		app := models.NewApplication(id.NewApplicationID(), id.NewAccountID(), []models.StagedDocument{{Step: 4}}, time.Now())
		s.service.EXPECT().Submit(gomock.Any(), s.sessionID).Return(app, nil)

		req := s.authed(httptest.NewRequest(http.MethodPost, "/registration/submit", nil))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("incomplete registration is 422", func() {
		s.service.EXPECT().Submit(gomock.Any(), s.sessionID).
			Return(nil, dErrors.New(dErrors.CodeValidation, "incomplete registration"))

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit", nil))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
		s.Equal("incomplete registration", testutil.UnmarshalErrorResponse(s.T(), rr)["error_description"])
	})
}

func (s *HandlerSuite) TestStatus() {
	session, err := models.NewSession(s.sessionID, "29801011234567", "Sara Mahmoud", time.Now(), time.Hour)
	s.Require().NoError(err)
	session.ApplyAccountBinding(id.NewAccountID())
	session.ApplyStaged(models.StagedDocument{Step: 8, FileName: "me.jpg", Score: 100})
	s.service.EXPECT().Status(gomock.Any(), s.sessionID).Return(session, nil)

	req := s.authed(httptest.NewRequest(http.MethodGet, "/registration", nil))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[statusResponse](s.T(), rr)
	s.Equal(models.StateStagingDocuments, body.State)
	s.Equal(1, body.Remaining)
	s.Require().Len(body.Staged, 1)
	s.Equal(8, body.Staged[0].Step)
}

func (s *HandlerSuite) TestIdentityLookupsAreRateLimited() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimitmw.New(bucket.NewInMemoryBucketStore(), logger,
		ratelimitmw.WithPolicy(ratelimit.ClassIdentity, ratelimit.Policy{Limit: 1, Window: time.Minute}))
	router := chi.NewRouter()
	New(s.service, s.tokens, logger, WithRateLimiter(limiter)).Register(router)

	s.service.EXPECT().ValidateIdentity(gomock.Any(), gomock.Any(), "29801011234567").
		Return(&service.IdentityResult{Status: models.IdentityPending}, nil).Times(1)

	first := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/identity", map[string]string{"national_id": "29801011234567"}))
	testutil.AssertStatus(s.T(), first, http.StatusOK)

	second := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/identity", map[string]string{"national_id": "29801011234567"}))
	testutil.AssertStatus(s.T(), second, http.StatusTooManyRequests)
}
