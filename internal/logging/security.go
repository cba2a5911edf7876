// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging:
// an admitted failed-login record, or a block lifecycle action taken
// against a source IP.
type SecurityEvent struct {
	// Event is the type of event (e.g. "failed_login", "block_created",
	// "unblock").
	Event string
	// SourceIP is the client address the event concerns.
	SourceIP string
	// Username is the attempted account name (sanitized before logging).
	Username string
	// HostID identifies the reporting host.
	HostID string
	// Scope distinguishes global from per-host blocks, where applicable.
	Scope string
	// Success indicates whether the underlying action succeeded.
	Success bool
	// Error is the error message if the action failed.
	Error string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger provides audit logging for failed-login and block
// lifecycle events. It automatically sanitizes account names before
// they reach a log sink, since a brute-force attacker can supply
// arbitrary (and sometimes sensitive-looking) usernames as input.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger using the global
// logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "audit").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom
// zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "ok")
	} else {
		e = e.Str("status", "failed")
	}

	if event.SourceIP != "" {
		e = e.Str("source_ip", event.SourceIP)
	}
	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.HostID != "" {
		e = e.Str("host_id", event.HostID)
	}
	if event.Scope != "" {
		e = e.Str("scope", event.Scope)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// LogFailedLogin records one admitted failed-login record.
func (l *SecurityLogger) LogFailedLogin(sourceIP, username, hostID string) {
	l.LogEvent(&SecurityEvent{
		Event:    "failed_login",
		SourceIP: sourceIP,
		Username: username,
		HostID:   hostID,
		Success:  true,
	})
}

// LogBlockCreated records a new block taking effect.
func (l *SecurityLogger) LogBlockCreated(sourceIP, scope, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:    "block_created",
		SourceIP: sourceIP,
		Scope:    scope,
		Success:  true,
		Details:  map[string]string{"reason": reason},
	})
}

// LogUnblock records a block being lifted, either manually or by
// expiry.
func (l *SecurityLogger) LogUnblock(sourceIP, scope, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:    "unblock",
		SourceIP: sourceIP,
		Scope:    scope,
		Success:  true,
		Details:  map[string]string{"reason": reason},
	})
}

// SanitizeUsername masks a username, keeping the first two characters.
// Example: "administrator" -> "ad***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeEmail masks a UPN-style identity ("user@domain.com"), which
// TargetUserName carries on domain-joined hosts.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error
// messages before they're logged.
func SanitizeError(err string) string {
	sensitivePatterns := []string{"password", "secret", "token", "key", "bearer", "authorization", "cookie"}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "sanitized error"
		}
	}

	return truncateString(err, 200)
}

// SanitizeValue sanitizes a detail value based on its key name.
func SanitizeValue(key, value string) string {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := map[string]bool{
		"password": true, "secret": true, "api_key": true, "apikey": true,
		"authorization": true, "bearer": true, "cookie": true, "token": true,
	}
	if sensitiveKeys[lowerKey] {
		return "***"
	}

	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}

	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
