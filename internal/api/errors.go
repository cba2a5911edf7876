// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/loginwatch/sentinel/internal/blockmanager"
)

// validationErr marks a request as malformed — surfaced as 400.
type validationErr struct{ msg string }

func (e *validationErr) Error() string { return e.msg }

func newValidationError(msg string) error { return &validationErr{msg: msg} }

// respondFromError maps an internal error to the taxonomy spec.md §7
// describes (Validation -> 400, NotFound -> 404, everything else ->
// Transient/500) and writes the response.
func respondFromError(w http.ResponseWriter, err error) {
	var ve *validationErr
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.msg)
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, blockmanager.ErrNoActiveBlock):
		respondError(w, http.StatusNotFound, "not found")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
