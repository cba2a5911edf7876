// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/loginwatch/sentinel/internal/logging"
)

// envelope is every response's JSON shape: {"success": bool, ...fields}.
// On error it is {"success": false, "error": "<message>"} — exactly the
// two-key error shape the wire contract specifies, nothing richer.
type envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode API response")
	}
}

// respondSuccess writes a 200 response merging fields into {"success": true}.
func respondSuccess(w http.ResponseWriter, fields envelope) {
	respondSuccessStatus(w, http.StatusOK, fields)
}

// respondSuccessStatus writes a success response with a caller-chosen
// status code (e.g. 201 Created for registration endpoints).
func respondSuccessStatus(w http.ResponseWriter, status int, fields envelope) {
	body := envelope{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// respondError writes {"success": false, "error": message} at status.
func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "error": message})
}
