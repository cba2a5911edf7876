// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"a", "***"},
		{"ab", "***"},
		{"johndoe", "jo***"},
		{"administrator", "ad***"},
	}

	for _, tt := range tests {
		result := SanitizeUsername(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeUsername(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"invalid", "***"},
		{"a@b.com", "***@b.com"},
		{"ab@example.com", "***@example.com"},
		{"john.doe@example.com", "jo***@example.com"},
	}

	for _, tt := range tests {
		result := SanitizeEmail(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"regular error", "regular error"},
		{"invalid password", "sanitized error"},
		{"token expired", "sanitized error"},
		{"secret key invalid", "sanitized error"},
		{"Bearer token missing", "sanitized error"},
		{"authorization failed", "sanitized error"},
		{"cookie missing", "sanitized error"},
	}

	for _, tt := range tests {
		result := SanitizeError(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeError(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeError_LongError(t *testing.T) {
	t.Parallel()

	longErr := strings.Repeat("a", 250)
	result := SanitizeError(longErr)

	if len(result) > 210 { // 200 + "..."
		t.Errorf("expected truncated error, got length %d", len(result))
	}
	if !strings.HasSuffix(result, "...") {
		t.Error("expected truncation suffix")
	}
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      string
		value    string
		expected string
	}{
		{"name", "John", "John"},
		{"password", "secret123", "***"},
		{"token", "abcdef12345", "***"},
		{"api_key", "key-12345678901234", "***"},
		{"email_field", "john@example.com", "jo***@example.com"},
		{"reason", "manual-unblock", "manual-unblock"},
	}

	for _, tt := range tests {
		result := SanitizeValue(tt.key, tt.value)
		if result != tt.expected {
			t.Errorf("SanitizeValue(%q, %q) = %q, want %q", tt.key, tt.value, result, tt.expected)
		}
	}
}

func TestSecurityLogger_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogEvent(&SecurityEvent{
		Event:    "failed_login",
		SourceIP: "192.168.1.1",
		Username: "testuser",
		HostID:   "host-1",
		Success:  true,
	})

	output := buf.String()
	if !strings.Contains(output, "failed_login") {
		t.Errorf("expected event in output: %s", output)
	}
	if !strings.Contains(output, `"status":"ok"`) {
		t.Errorf("expected status in output: %s", output)
	}
	if !strings.Contains(output, "te***") {
		t.Errorf("expected sanitized username in output: %s", output)
	}
	if !strings.Contains(output, "192.168.1.1") {
		t.Errorf("expected source_ip in output: %s", output)
	}
}

func TestSecurityLogger_LogEvent_Failed(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogEvent(&SecurityEvent{
		Event:   "block_action_failed",
		Success: false,
		Error:   "invalid credentials",
	})

	output := buf.String()
	if !strings.Contains(output, `"status":"failed"`) {
		t.Errorf("expected failed status in output: %s", output)
	}
}

func TestSecurityLogger_LogFailedLogin(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogFailedLogin("198.51.100.9", "johndoe", "host-1")

	output := buf.String()
	if !strings.Contains(output, "failed_login") {
		t.Errorf("expected failed_login event: %s", output)
	}
	if !strings.Contains(output, "198.51.100.9") {
		t.Errorf("expected source_ip: %s", output)
	}
	if !strings.Contains(output, "jo***") {
		t.Errorf("expected sanitized username: %s", output)
	}
}

func TestSecurityLogger_LogBlockCreated(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogBlockCreated("198.51.100.9", "global", "threshold exceeded")

	output := buf.String()
	if !strings.Contains(output, "block_created") {
		t.Errorf("expected block_created event: %s", output)
	}
	if !strings.Contains(output, "global") {
		t.Errorf("expected scope: %s", output)
	}
	if !strings.Contains(output, "threshold exceeded") {
		t.Errorf("expected reason detail: %s", output)
	}
}

func TestSecurityLogger_LogUnblock(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogUnblock("198.51.100.9", "per_host", "manual")

	output := buf.String()
	if !strings.Contains(output, "unblock") {
		t.Errorf("expected unblock event: %s", output)
	}
	if !strings.Contains(output, "per_host") {
		t.Errorf("expected scope: %s", output)
	}
}

func TestNewSecurityLogger(t *testing.T) {
	secLog := NewSecurityLogger()
	if secLog == nil {
		t.Error("expected non-nil security logger")
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is a ..."},
	}

	for _, tt := range tests {
		result := truncateString(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
