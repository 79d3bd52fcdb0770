package models

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// RegistrationStatus tracks an account through review.
type RegistrationStatus string

const (
	StatusIncomplete RegistrationStatus = "incomplete"
	StatusPending    RegistrationStatus = "pending"
	StatusAccepted   RegistrationStatus = "accepted"
)

// RoleApplicant is the role assigned to every registered account.
const RoleApplicant = "applicant"

const dateLayout = "2006-01-02"

// Person is the applicant record.
type Person struct {
	ID                id.AccountID
	NationalID        id.NationalID
	FirstName         string
	LastName          string
	Phone             string
	DateOfBirth       time.Time
	Gender            string
	Age               int
	ProfilePictureURL string
	Status            RegistrationStatus
	CreatedAt         time.Time
}

// FullName joins first and last name.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Principal is the login identity attached to a person.
type Principal struct {
	PersonID     id.AccountID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountRequest carries the fields an applicant submits to create an account.
type AccountRequest struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	Phone             string `json:"phone"`
	DateOfBirth       string `json:"date_of_birth"`
	Gender            string `json:"gender"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

const minPasswordLength = 8

// Normalize trims whitespace and lowercases the email.
func (r *AccountRequest) Normalize() {
	if r == nil {
		return
	}
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.ProfilePictureURL = strings.TrimSpace(r.ProfilePictureURL)
}

// Validate checks required fields and formats.
func (r *AccountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.FirstName == "" || r.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "first and last name are required")
	}
	if !usernamePattern.MatchString(r.Username) {
		return dErrors.New(dErrors.CodeValidation, "username must be 3-32 letters, digits, '_', '.' or '-'")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if r.Phone != "" && !phonePattern.MatchString(r.Phone) {
		return dErrors.New(dErrors.CodeValidation, "phone is invalid")
	}
	if _, err := time.Parse(dateLayout, r.DateOfBirth); err != nil {
		return dErrors.New(dErrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
	}
	switch r.Gender {
	case "", "male", "female":
	default:
		return dErrors.New(dErrors.CodeValidation, "gender must be male or female")
	}
	return nil
}

// ParsedDateOfBirth returns the date of birth. Call Validate first.
func (r *AccountRequest) ParsedDateOfBirth() time.Time {
	t, _ := time.Parse(dateLayout, r.DateOfBirth)
	return t
}

// AgeOn returns the age in whole years at now.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// RosterEntry is a national ID known to the identity roster.
type RosterEntry struct {
	NationalID id.NationalID
	FullName   string
}
