package handler

import (
	"time"

	"intake/internal/registration/models"
	"intake/internal/registration/service"
	"intake/pkg/platform/httputil"
)

type identityResponse struct {
	Status    models.IdentityStatus `json:"status"`
	Token     string                `json:"registration_token,omitempty"`
	SessionID string                `json:"session_id,omitempty"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
}

func toIdentityResponse(res *service.IdentityResult) identityResponse {
	out := identityResponse{Status: res.Status, Token: res.Token}
	if !res.SessionID.IsNil() {
		out.SessionID = res.SessionID.String()
		expires := res.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}

type accountResponse struct {
	AccountID string                    `json:"account_id"`
	FirstName string                    `json:"first_name"`
	LastName  string                    `json:"last_name"`
	Age       int                       `json:"age"`
	Status    models.RegistrationStatus `json:"registration_status"`
}

type documentResponse struct {
	Step      int     `json:"step"`
	Score     float64 `json:"score"`
	FileName  string  `json:"file_name"`
	Remaining int     `json:"remaining"`
}

// rejectionResponse extends the error envelope with the score that failed.
type rejectionResponse struct {
	httputil.ErrorResponse
	Step   int     `json:"step"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

type submitResponse struct {
	ApplicationID string                   `json:"application_id"`
	Title         string                   `json:"title"`
	Status        models.ApplicationStatus `json:"status"`
	SubmittedAt   time.Time                `json:"submitted_at"`
	ReviewDate    time.Time                `json:"review_date"`
	DecisionDate  time.Time                `json:"decision_date"`
	Documents     int                      `json:"documents"`
}

type stagedStep struct {
	Step       int       `json:"step"`
	FileName   string    `json:"file_name"`
	Score      float64   `json:"score"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type statusResponse struct {
	SessionID string       `json:"session_id"`
	State     models.State `json:"state"`
	Staged    []stagedStep `json:"staged"`
	Remaining int          `json:"remaining"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toStatusResponse(s *models.Session) statusResponse {
	staged := make([]stagedStep, 0, len(s.Documents))
	for _, d := range s.Documents {
		staged = append(staged, stagedStep{Step: d.Step, FileName: d.FileName, Score: d.Score, UploadedAt: d.UploadedAt})
	}
	return statusResponse{
		SessionID: s.ID.String(),
		State:     s.State,
		Staged:    staged,
		Remaining: s.Remaining(),
		ExpiresAt: s.ExpiresAt,
	}
}
