// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// fingerprint identifies an event by the raw UTC system-time string the
// log reports, never the normalized local time: two agents (or a
// restarted agent re-reading the same log window) must derive the same
// fingerprint for the same underlying event regardless of the host's
// current timezone offset.
func fingerprint(utcSystemTime, ip, username string, sourcePort int) string {
	var b strings.Builder
	b.WriteString(utcSystemTime)
	b.WriteByte('|')
	b.WriteString(ip)
	b.WriteByte('|')
	b.WriteString(username)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(sourcePort))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
