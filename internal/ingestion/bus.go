// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package ingestion

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is the in-process publish/subscribe channel events flow through
// between ingestion and the live feed, once detection has already run
// synchronously. A single Bus is shared by Service (publisher side) and
// Dispatcher (subscriber side).
type Bus struct {
	*gochannel.GoChannel
}

// NewBus builds a Bus backed by watermill's in-memory gochannel
// implementation. There is no broker or NATS dependency for this path —
// ingestion and the feed both run in the same collector process, so an
// in-process channel is sufficient and keeps feed fan-out off the
// request-handling goroutine.
func NewBus() *Bus {
	logger := watermill.NewStdLogger(false, false)
	return &Bus{
		GoChannel: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
	}
}
