// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package api

import "net"

// validIP reports whether s parses as an IPv4 dotted-quad or a valid IPv6
// literal. Every endpoint that receives an IP in the body or path rejects
// with 400 when this returns false.
func validIP(s string) bool {
	return net.ParseIP(s) != nil
}
