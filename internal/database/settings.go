// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/loginwatch/sentinel/internal/models"
)

// Settings keys stored in the key/value settings table. Unset keys fall
// back to the collector's static DetectionConfig/BlockConfig defaults.
const (
	settingGlobalThreshold       = "global_threshold"
	settingGlobalWindow          = "global_window_seconds"
	settingGlobalBlockDur        = "global_block_duration_seconds"
	settingPerHostThreshold      = "per_host_threshold"
	settingPerHostWindow         = "per_host_window_seconds"
	settingPerHostBlockDur       = "per_host_block_duration_seconds"
	settingEnableAutoBlock       = "enable_auto_block"
	settingEnableGlobalAutoBlock = "enable_global_auto_block"
)

// GetSetting returns one raw value, or sql.ErrNoRows if key is unset.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM settings WHERE key = ?`
	var v string
	if err := db.conn.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// SetSetting creates or replaces one raw value.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value
`
	if _, err := db.conn.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("database: set setting %s: %w", key, err)
	}
	return nil
}

// GetSettings loads the overridable detection/block tunables, falling back
// to defaults for any key that has never been written.
func (db *DB) GetSettings(ctx context.Context, defaults models.Settings) (models.Settings, error) {
	s := defaults

	if v, err := db.getInt(ctx, settingGlobalThreshold); err == nil {
		s.GlobalThreshold = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getDuration(ctx, settingGlobalWindow); err == nil {
		s.GlobalWindow = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getDuration(ctx, settingGlobalBlockDur); err == nil {
		s.GlobalBlockDuration = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getInt(ctx, settingPerHostThreshold); err == nil {
		s.PerHostThreshold = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getDuration(ctx, settingPerHostWindow); err == nil {
		s.PerHostWindow = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getDuration(ctx, settingPerHostBlockDur); err == nil {
		s.PerHostBlockDur = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getBool(ctx, settingEnableAutoBlock); err == nil {
		s.EnableAutoBlock = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}
	if v, err := db.getBool(ctx, settingEnableGlobalAutoBlock); err == nil {
		s.EnableGlobalAutoBlock = v
	} else if err != sql.ErrNoRows {
		return models.Settings{}, err
	}

	return s, nil
}

// SetSettings persists every tunable in s, overwriting prior overrides.
func (db *DB) SetSettings(ctx context.Context, s models.Settings) error {
	pairs := map[string]string{
		settingGlobalThreshold:       strconv.Itoa(s.GlobalThreshold),
		settingGlobalWindow:          strconv.Itoa(int(s.GlobalWindow.Seconds())),
		settingGlobalBlockDur:        strconv.Itoa(int(s.GlobalBlockDuration.Seconds())),
		settingPerHostThreshold:      strconv.Itoa(s.PerHostThreshold),
		settingPerHostWindow:         strconv.Itoa(int(s.PerHostWindow.Seconds())),
		settingPerHostBlockDur:       strconv.Itoa(int(s.PerHostBlockDur.Seconds())),
		settingEnableAutoBlock:       strconv.FormatBool(s.EnableAutoBlock),
		settingEnableGlobalAutoBlock: strconv.FormatBool(s.EnableGlobalAutoBlock),
	}
	for k, v := range pairs {
		if err := db.SetSetting(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) getInt(ctx context.Context, key string) (int, error) {
	v, err := db.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (db *DB) getDuration(ctx context.Context, key string) (time.Duration, error) {
	v, err := db.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

func (db *DB) getBool(ctx context.Context, key string) (bool, error) {
	v, err := db.GetSetting(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(v)
}

// GetEnableAutoBlock returns the ENABLE_AUTO_BLOCK master switch, falling
// back to def if it has never been set. This gates per-host auto-blocking
// independently of GetEnableGlobalAutoBlock.
func (db *DB) GetEnableAutoBlock(ctx context.Context, def bool) (bool, error) {
	v, err := db.getBool(ctx, settingEnableAutoBlock)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	return v, err
}

// GetEnableGlobalAutoBlock returns the ENABLE_GLOBAL_AUTO_BLOCK master
// switch, falling back to def if it has never been set. This gates global
// auto-blocking independently of GetEnableAutoBlock.
func (db *DB) GetEnableGlobalAutoBlock(ctx context.Context, def bool) (bool, error) {
	v, err := db.getBool(ctx, settingEnableGlobalAutoBlock)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	return v, err
}
