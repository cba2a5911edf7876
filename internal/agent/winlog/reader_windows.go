// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

//go:build windows

package winlog

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// eventSource reads the Security log through the Windows Event Log API
// (wevtapi.dll). There is no maintained Go wrapper for this API in wide
// use, so the binding is a thin direct syscall layer, the same way the
// standard library's own windows-specific packages talk to Win32.
type eventSource struct {
	eventID int
	query   string

	mu        sync.Mutex
	subscribe windows.Handle
	signal    windows.Handle
}

var (
	modWevtapi = windows.NewLazySystemDLL("wevtapi.dll")

	procEvtQuery      = modWevtapi.NewProc("EvtQuery")
	procEvtNext       = modWevtapi.NewProc("EvtNext")
	procEvtRender     = modWevtapi.NewProc("EvtRender")
	procEvtClose      = modWevtapi.NewProc("EvtClose")
	procEvtSubscribe  = modWevtapi.NewProc("EvtSubscribe")
)

const (
	evtQueryChannelPath   = 0x1
	evtQueryReverseDirection = 0x200
	evtQueryForwardDirection = 0x100

	evtRenderEventXml = 1

	evtSubscribeToFutureEvents = 1
	evtSubscribeStartAtOldestRecord = 2

	evtSubscribeActionDeliver = 1
)

// Open connects to the local Security channel, scoped to eventID via an
// XPath structured-query filter.
func Open(eventID int) (EventSource, error) {
	query := fmt.Sprintf("*[System[EventID=%d]]", eventID)
	return &eventSource{eventID: eventID, query: query}, nil
}

func (e *eventSource) ReadBackward(ctx context.Context, before uint64, maxEvents int) ([]RawEvent, error) {
	return e.read(before, maxEvents, evtQueryReverseDirection)
}

func (e *eventSource) ReadForward(ctx context.Context, after uint64, maxEvents int) ([]RawEvent, error) {
	return e.read(after, maxEvents, evtQueryForwardDirection)
}

// read issues an EvtQuery over the Security channel and pulls up to
// maxEvents results with EvtNext, rendering each to XML and parsing the
// fields the pipeline needs. A non-zero cursor is added to the XPath
// filter as an EventRecordID bound (greater than cursor when reading
// forward, less than cursor when reading backward), so only records past
// the cursor in the read direction are returned.
func (e *eventSource) read(cursor uint64, maxEvents int, direction uint32) ([]RawEvent, error) {
	channel, err := syscall.UTF16PtrFromString("Security")
	if err != nil {
		return nil, err
	}
	query := e.query
	if cursor != 0 {
		op := ">"
		if direction == evtQueryReverseDirection {
			op = "<"
		}
		query = fmt.Sprintf("*[System[EventID=%d and EventRecordID%s%d]]", e.eventID, op, cursor)
	}
	q, err := syscall.UTF16PtrFromString(query)
	if err != nil {
		return nil, err
	}

	h, _, callErr := procEvtQuery.Call(
		0,
		uintptr(unsafe.Pointer(channel)),
		uintptr(unsafe.Pointer(q)),
		uintptr(evtQueryChannelPath|direction),
	)
	if h == 0 {
		return nil, fmt.Errorf("winlog: EvtQuery: %w", callErr)
	}
	queryHandle := windows.Handle(h)
	defer procEvtClose.Call(uintptr(queryHandle))

	events := make([]windows.Handle, 0, maxEvents)
	defer func() {
		for _, eh := range events {
			procEvtClose.Call(uintptr(eh))
		}
	}()

	handles := make([]windows.Handle, maxEvents)
	var returned uint32
	ok, _, callErr := procEvtNext.Call(
		uintptr(queryHandle),
		uintptr(maxEvents),
		uintptr(unsafe.Pointer(&handles[0])),
		uintptr(1000),
		0,
		uintptr(unsafe.Pointer(&returned)),
	)
	if ok == 0 {
		if callErr == windows.ERROR_NO_MORE_ITEMS {
			return nil, nil
		}
		return nil, fmt.Errorf("winlog: EvtNext: %w", callErr)
	}

	out := make([]RawEvent, 0, returned)
	for i := uint32(0); i < returned; i++ {
		raw, recordID, err := renderEvent(handles[i])
		procEvtClose.Call(uintptr(handles[i]))
		if err != nil {
			continue
		}
		if recordID == cursor {
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

// Wait blocks on a pull-model subscription's signal event until the next
// matching event arrives or timeout lapses. The subscription is created lazily on
// first call and reused afterward.
func (e *eventSource) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	e.mu.Lock()
	if e.signal == 0 {
		sig, err := windows.CreateEvent(nil, 1, 0, nil)
		if err != nil {
			e.mu.Unlock()
			return false, fmt.Errorf("winlog: CreateEvent: %w", err)
		}
		e.signal = sig

		channel, err := syscall.UTF16PtrFromString("Security")
		if err != nil {
			e.mu.Unlock()
			return false, err
		}
		q, err := syscall.UTF16PtrFromString(e.query)
		if err != nil {
			e.mu.Unlock()
			return false, err
		}
		h, _, callErr := procEvtSubscribe.Call(
			0, uintptr(sig), uintptr(unsafe.Pointer(channel)), uintptr(unsafe.Pointer(q)),
			0, 0, 0, uintptr(evtSubscribeToFutureEvents),
		)
		if h == 0 {
			e.mu.Unlock()
			return false, fmt.Errorf("winlog: EvtSubscribe: %w", callErr)
		}
		e.subscribe = windows.Handle(h)
	}
	sig := e.signal
	e.mu.Unlock()

	waitMs := uint32(timeout / time.Millisecond)
	evt, err := windows.WaitForSingleObject(sig, waitMs)
	if err != nil {
		return false, err
	}
	switch evt {
	case windows.WAIT_OBJECT_0:
		windows.ResetEvent(sig)
		return true, nil
	case uint32(windows.WAIT_TIMEOUT):
		return false, nil
	default:
		return false, fmt.Errorf("winlog: unexpected wait result %d", evt)
	}
}

func (e *eventSource) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subscribe != 0 {
		procEvtClose.Call(uintptr(e.subscribe))
		e.subscribe = 0
	}
	if e.signal != 0 {
		windows.CloseHandle(e.signal)
		e.signal = 0
	}
	return nil
}

// eventXML mirrors the subset of the Security-log event schema the
// pipeline cares about. Field names match the log's own XML, not this
// codebase's naming.
type eventXML struct {
	System struct {
		EventRecordID uint64 `xml:"EventRecordID"`
		TimeCreated   struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	EventData struct {
		Data []struct {
			Name  string `xml:"Name,attr"`
			Value string `xml:",chardata"`
		} `xml:"Data"`
	} `xml:"EventData"`
}

func renderEvent(h windows.Handle) (RawEvent, uint64, error) {
	var used, propCount uint32
	procEvtRender.Call(0, uintptr(h), uintptr(evtRenderEventXml), 0, 0, uintptr(unsafe.Pointer(&used)), uintptr(unsafe.Pointer(&propCount)))

	buf := make([]uint16, used/2+1)
	ok, _, callErr := procEvtRender.Call(
		0, uintptr(h), uintptr(evtRenderEventXml),
		uintptr(len(buf)*2), uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&used)), uintptr(unsafe.Pointer(&propCount)),
	)
	if ok == 0 {
		return RawEvent{}, 0, fmt.Errorf("winlog: EvtRender: %w", callErr)
	}

	xmlStr := syscall.UTF16ToString(buf)
	var parsed eventXML
	if err := xml.Unmarshal([]byte(xmlStr), &parsed); err != nil {
		return RawEvent{}, 0, fmt.Errorf("winlog: parsing event xml: %w", err)
	}

	raw := RawEvent{
		RecordID:      parsed.System.EventRecordID,
		UTCSystemTime: parsed.System.TimeCreated.SystemTime,
	}
	for _, d := range parsed.EventData.Data {
		switch d.Name {
		case "IpAddress":
			raw.IPAddress = d.Value
		case "IpPort":
			raw.IPPort = d.Value
		case "TargetUserName":
			raw.TargetUserName = d.Value
		case "TargetDomainName":
			raw.TargetDomainName = d.Value
		case "LogonType":
			raw.LogonType = d.Value
		case "Status", "SubStatus", "FailureReason":
			if raw.Status == "" {
				raw.Status = d.Value
			}
		case "WorkstationName":
			raw.WorkstationName = d.Value
		}
	}
	return raw, parsed.System.EventRecordID, nil
}
