package models

import "time"

// EndpointClass groups endpoints that share one rate limit policy.
type EndpointClass string

const (
	// ClassIdentity covers national ID lookups, the enumeration surface.
	ClassIdentity EndpointClass = "identity"
	// ClassUpload covers document uploads, which fan out to the vision provider.
	ClassUpload EndpointClass = "upload"
)

// Policy is a sliding window limit.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicies returns the limits applied when none are configured.
func DefaultPolicies() map[EndpointClass]Policy {
	return map[EndpointClass]Policy{
		ClassIdentity: {Limit: 10, Window: time.Minute},
		ClassUpload:   {Limit: 30, Window: time.Minute},
	}
}

// RateLimitResult is the outcome of one Allow call.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when denied
}

// RateLimitExceededResponse is the API response when a limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// BucketKey scopes a counter to one class and caller.
func BucketKey(class EndpointClass, identifier string) string {
	return "ratelimit:" + string(class) + ":" + identifier
}
