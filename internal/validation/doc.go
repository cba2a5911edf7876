// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package validation wraps go-playground/validator v10 behind a thread-safe
// singleton and translates its field errors into human-readable messages
// collectors and agents can return directly in an API response body.
//
// # Quick start
//
//	type createBlockRequest struct {
//	    IPAddress       string `validate:"required,ip"`
//	    Reason          string `validate:"required"`
//	    DurationMinutes int    `validate:"required,min=1"`
//	}
//
//	func (h *Handler) CreateGlobalBlock(w http.ResponseWriter, r *http.Request) {
//	    var req createBlockRequest
//	    decodeJSON(r, &req)
//	    if ve := validation.ValidateStruct(&req); ve != nil {
//	        respondError(w, http.StatusBadRequest, ve.Error())
//	        return
//	    }
//	    // proceed with a valid request
//	}
//
// # Tags in use
//
//   - required: field must be non-zero
//   - ip: valid IPv4 or IPv6 address (models.FailedLogin.SourceIP)
//   - len=n: exact length (models.FailedLogin.Fingerprint, a 64-char hex digest)
//   - min=n/max=n: numeric or string length bounds
//   - dive: validates each element of a slice field (models.EventBatch.Events)
//
// # Error types
//
//	ValidationError{ Field() string; Tag() string; Error() string }
//	RequestValidationError{ Errors() []ValidationError; Error() string }
//
// ValidateStruct returns a *RequestValidationError (nil on success); its
// Error() joins every failed field into one message, which is what
// internal/api's handlers return directly as the HTTP error body.
//
// # Thread safety
//
// GetValidator initializes the underlying *validator.Validate once and
// reuses it; validator.Validate caches struct reflection info internally
// and is itself safe for concurrent use.
package validation
