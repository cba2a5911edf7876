// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"encoding/json"
	"os"
	"sync"
)

// maxSeenFingerprints bounds the dedup set. Eviction is safe because the
// OS event log itself has bounded retention, so an evicted fingerprint's
// underlying event can never resurface through the back-scan.
const maxSeenFingerprints = 50000

// seenSet is a bounded, insertion-ordered set of event fingerprints,
// persisted to disk so a restarted agent doesn't re-emit events it
// already shipped. It is not safe for the zero value; use newSeenSet.
type seenSet struct {
	mu     sync.Mutex
	path   string
	index  map[string]struct{}
	order  []string
}

func newSeenSet(path string) *seenSet {
	return &seenSet{
		path:  path,
		index: make(map[string]struct{}),
	}
}

// loadSeenSet reads path if it exists. A missing or corrupt file is
// treated as an empty set: per the pipeline's documented failure
// semantics, loss of this file just reverts the agent to "first run"
// behavior and server-side dedup covers the rest.
func loadSeenSet(path string) *seenSet {
	s := newSeenSet(path)
	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var fps []string
	if err := json.Unmarshal(data, &fps); err != nil {
		return s
	}
	if len(fps) > maxSeenFingerprints {
		fps = fps[len(fps)-maxSeenFingerprints:]
	}
	for _, fp := range fps {
		s.index[fp] = struct{}{}
	}
	s.order = fps
	return s
}

// Contains reports whether fp has already been admitted.
func (s *seenSet) Contains(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[fp]
	return ok
}

// Add inserts fp, evicting the oldest entry if the set is already at
// capacity. No-op if fp is already present.
func (s *seenSet) Add(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[fp]; ok {
		return
	}
	s.index[fp] = struct{}{}
	s.order = append(s.order, fp)
	if len(s.order) > maxSeenFingerprints {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.index, oldest)
	}
}

// Persist writes the set to its backing file. A no-op if no path was
// configured (e.g. in tests).
func (s *seenSet) Persist() error {
	s.mu.Lock()
	snapshot := append([]string(nil), s.order...)
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Len reports the current number of tracked fingerprints.
func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
