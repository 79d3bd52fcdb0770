package handler

import (
	"strings"

	"intake/internal/registration/models"
	dErrors "intake/pkg/domain-errors"
)

type identityRequest struct {
	NationalID string `json:"national_id"`
}

func (r *identityRequest) Validate() error {
	if strings.TrimSpace(r.NationalID) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "national_id is required")
	}
	return nil
}

type accountRequest struct {
	models.AccountRequest
}

func (r *accountRequest) Validate() error {
	r.Normalize()
	return r.AccountRequest.Validate()
}
