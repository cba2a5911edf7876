// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeenSet_ContainsAndAdd(t *testing.T) {
	s := newSeenSet("")
	require.False(t, s.Contains("fp1"))
	s.Add("fp1")
	require.True(t, s.Contains("fp1"))
	require.Equal(t, 1, s.Len())
}

func TestSeenSet_EvictsOldestOnOverflow(t *testing.T) {
	s := newSeenSet("")
	for i := 0; i < maxSeenFingerprints+10; i++ {
		s.Add(fmt.Sprintf("fp-%d", i))
	}
	require.Equal(t, maxSeenFingerprints, s.Len())
	require.False(t, s.Contains("fp-0"), "oldest entries should have been evicted")
	require.True(t, s.Contains(fmt.Sprintf("fp-%d", maxSeenFingerprints+9)), "newest entry should remain")
}

func TestSeenSet_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_seen.json")
	s := newSeenSet(path)
	s.Add("fp1")
	s.Add("fp2")
	require.NoError(t, s.Persist())

	reloaded := loadSeenSet(path)
	require.True(t, reloaded.Contains("fp1"))
	require.True(t, reloaded.Contains("fp2"))
	require.Equal(t, 2, reloaded.Len())
}

func TestLoadSeenSet_MissingFileStartsEmpty(t *testing.T) {
	s := loadSeenSet(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Equal(t, 0, s.Len())
}

func TestLoadSeenSet_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	s := loadSeenSet(path)
	require.Equal(t, 0, s.Len())
}
