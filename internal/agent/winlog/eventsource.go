// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

// Package winlog isolates the agent's only OS-specific dependency: reading
// failed-logon records out of the Windows security event log. Everything
// above this package talks to the EventSource interface so the pipeline
// itself builds and tests on any platform.
package winlog

import (
	"context"
	"time"
)

// RawEvent is one security-log record as handed up from the OS, before
// the pipeline parses it into a models.FailedLogin. Fields are left as
// the raw strings the event XML carries; UTCSystemTime in particular
// MUST be the unmodified UTC string the log reports, since the pipeline's
// fingerprint is defined over that exact representation.
type RawEvent struct {
	// RecordID is the event log's own monotonically increasing record
	// number, used as the forward/backward scan cursor.
	RecordID uint64

	// UTCSystemTime is the raw <TimeCreated SystemTime="..."/> string,
	// unmodified. Never normalize or reformat this before fingerprinting.
	UTCSystemTime string

	IPAddress        string
	IPPort           string
	TargetUserName   string
	TargetDomainName string
	LogonType        string
	Status           string
	WorkstationName  string
}

// EventSource abstracts reading the security event log for a single
// event ID (failed logon, normally 4625). Implementations live in
// reader_windows.go (the real wevtapi-backed reader) and reader_stub.go
// (a non-Windows build that returns no events, so the rest of the agent
// compiles and tests away from Windows).
type EventSource interface {
	// ReadBackward returns up to maxEvents records strictly older than
	// before (RecordID 0 means "start from the newest record"), newest
	// first. It implements the pipeline's startup back-scan.
	ReadBackward(ctx context.Context, before uint64, maxEvents int) ([]RawEvent, error)

	// ReadForward returns records strictly newer than after, oldest
	// first. It implements both the live subscription's catch-up read
	// and the poll-timeout safety net.
	ReadForward(ctx context.Context, after uint64, maxEvents int) ([]RawEvent, error)

	// Wait blocks until a new matching event is published or timeout
	// elapses, returning true if signaled. A false return with a nil
	// error just means the timeout lapsed with nothing new; the caller
	// is expected to call ReadForward either way.
	Wait(ctx context.Context, timeout time.Duration) (bool, error)

	// Close releases the underlying subscription/query handles.
	Close() error
}
