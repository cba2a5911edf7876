// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"fmt"
	"strconv"
	"time"

	"github.com/loginwatch/sentinel/internal/agent/winlog"
)

// systemTimeLayout matches the SystemTime attribute Windows writes on
// TimeCreated: RFC3339 with up to 9 fractional digits (the log itself
// carries 7, 100ns-tick precision). The "9"s are optional-digit
// placeholders, so shorter fractions parse fine too.
const systemTimeLayout = "2006-01-02T15:04:05.999999999Z"

// parsedEvent is a RawEvent after field extraction and loopback
// filtering, still carrying the raw UTC time needed for fingerprinting
// alongside the host-local time that will actually be transmitted.
type parsedEvent struct {
	utcSystemTime string
	localTime     time.Time
	ip            string
	port          int
	username      string
	domain        string
	logonType     int
	status        string
	workstation   string
}

// isLoopbackOrEmpty reports whether ip is one the pipeline drops as
// noise: missing, the log's own placeholder, or a loopback address.
func isLoopbackOrEmpty(ip string) bool {
	switch ip {
	case "", "-", "0.0.0.0", "::1", "127.0.0.1":
		return true
	default:
		return false
	}
}

// parseRawEvent extracts and validates the fields the pipeline needs
// from one OS event record. A non-nil error means the event should be
// logged and skipped, never abort the batch. A nil event with a nil
// error means the event was filtered as loopback/empty-source noise,
// not malformed — callers should distinguish the two only for logging
// verbosity, since both end in "drop this event".
func parseRawEvent(raw winlog.RawEvent) (*parsedEvent, error) {
	if isLoopbackOrEmpty(raw.IPAddress) {
		return nil, nil
	}

	localTime, err := normalizeTimestamp(raw.UTCSystemTime)
	if err != nil {
		return nil, fmt.Errorf("parsing event time %q: %w", raw.UTCSystemTime, err)
	}

	port := 0
	if raw.IPPort != "" {
		port, err = strconv.Atoi(raw.IPPort)
		if err != nil {
			port = 0
		}
	}

	logonType := 0
	if raw.LogonType != "" {
		logonType, _ = strconv.Atoi(raw.LogonType)
	}

	return &parsedEvent{
		utcSystemTime: raw.UTCSystemTime,
		localTime:     localTime,
		ip:            raw.IPAddress,
		port:          port,
		username:      raw.TargetUserName,
		domain:        raw.TargetDomainName,
		logonType:     logonType,
		status:        raw.Status,
		workstation:   raw.WorkstationName,
	}, nil
}

// normalizeTimestamp converts the raw UTC system-time string to the
// host's current local civil time. Go's time.Time keeps nanosecond
// precision internally regardless of how many fractional digits the
// source carried, so nothing is truncated between parse and transmit;
// the wire encoding (RFC3339Nano, via encoding/json's time.Time support)
// reproduces exactly the digits that were significant.
func normalizeTimestamp(utcSystemTime string) (time.Time, error) {
	t, err := time.Parse(systemTimeLayout, utcSystemTime)
	if err != nil {
		return time.Time{}, err
	}
	return t.Local(), nil
}

// fingerprintOf computes the dedup fingerprint for a parsed event using
// the RAW UTC string, never the normalized local time.
func (p *parsedEvent) fingerprintOf() string {
	return fingerprint(p.utcSystemTime, p.ip, p.username, p.port)
}
