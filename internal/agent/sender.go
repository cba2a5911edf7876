// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/loginwatch/sentinel/internal/models"
)

// sender posts event batches to the Collector's ingest endpoint. A
// rate.Limiter paces requests so a send loop retrying against a down or
// slow collector can't turn into a hot loop: it allows one send
// immediately, then enforces at least minInterval between the ones that
// follow.
type sender struct {
	baseURL    string
	hostID     string
	hostName   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newSender(baseURL, hostID, hostName string, timeout, minInterval time.Duration) *sender {
	return &sender{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		hostID:   hostID,
		hostName: hostName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Send posts events as a single EventBatch. A non-2xx response or
// transport error is returned so the caller can retain the queue for
// the next drain cycle. Send blocks until the limiter admits the
// request, so a caller already holding ctx's deadline should account
// for that wait.
func (s *sender) Send(ctx context.Context, events []models.FailedLogin) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("agent: rate limiter: %w", err)
	}

	batch := models.EventBatch{
		HostID:   s.hostID,
		Hostname: s.hostName,
		Events:   events,
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("agent: encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agent: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent: sending batch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent: collector returned status %d", resp.StatusCode)
	}
	return nil
}
