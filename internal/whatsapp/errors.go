package whatsapp

import "errors"

// Provider error code classes that drive channel policy on status callbacks.
// The codes come from the Cloud API error reference.
var (
	rateLimitCodes = map[int]bool{
		4:      true, // app-level throughput
		80007:  true, // WABA rate limit
		130429: true, // cloud api throughput
		131048: true, // spam rate limit
		131056: true, // pair rate limit
	}
	authCodes = map[int]bool{
		0:   true, // auth exception
		190: true, // access token expired or invalidated
	}
	suspensionCodes = map[int]bool{
		131031: true, // account locked
	}
)

// AsAPIError extracts the provider rejection from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRateLimited reports whether the provider code signals throughput limiting.
func IsRateLimited(code int) bool { return rateLimitCodes[code] }

// IsAuthError reports whether the provider code means the access token is no
// longer usable.
func IsAuthError(code int) bool { return authCodes[code] }

// IsSuspension reports whether the provider code means the account was locked
// upstream.
func IsSuspension(code int) bool { return suspensionCodes[code] }
