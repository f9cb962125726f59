// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package storage persists learned preference state in BadgerDB so a
// restart does not lose what the engine has learned about its users.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/resona-fm/resona/internal/recommend/preferences"
)

// Key prefixes for BadgerDB storage
const prefKeyPrefix = "pref:"

// BadgerStore implements preferences.Persister using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a store on an already opened database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Open opens a BadgerDB at dir and returns a store over it. The caller
// owns closing the returned database.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(dir string, logger zerolog.Logger) (*BadgerStore, *badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger.With().Str("component", "badger").Logger()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return NewBadgerStore(db), db, nil
}

// SaveUser implements preferences.Persister.
func (s *BadgerStore) SaveUser(ctx context.Context, userID int64, state preferences.UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal user state: %w", err)
	}
	key := []byte(prefKeyPrefix + strconv.FormatInt(userID, 10))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("save user %d: %w", userID, err)
	}
	return nil
}

// LoadUsers implements preferences.Persister. Entries with unparseable
// keys or values are skipped rather than failing the whole load.
func (s *BadgerStore) LoadUsers(ctx context.Context) (map[int64]preferences.UserState, error) {
	states := make(map[int64]preferences.UserState)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			userID, err := strconv.ParseInt(strings.TrimPrefix(string(item.Key()), prefKeyPrefix), 10, 64)
			if err != nil {
				continue
			}
			var state preferences.UserState
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			})
			if err != nil {
				continue
			}
			states[userID] = state
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load user states: %w", err)
	}
	return states, nil
}

// DeleteUser removes a user's persisted state.
func (s *BadgerStore) DeleteUser(ctx context.Context, userID int64) error {
	key := []byte(prefKeyPrefix + strconv.FormatInt(userID, 10))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	return nil
}

// badgerLogger adapts zerolog to badger's logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}
