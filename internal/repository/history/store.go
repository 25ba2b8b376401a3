// Package history persists session conversation transcripts in redis.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/citegate/internal/db"
	"github.com/kailas-cloud/citegate/internal/domain"
)

// store is the consumer interface for transcript operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// exchangeRow is the JSON-serializable representation of an exchange.
type exchangeRow struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Store implements usecase/chat.HistoryStore on top of DB.
// Each session transcript is a single JSON document holding the most
// recent exchanges, newest last.
type Store struct {
	store     store
	keyPrefix string
	ttl       time.Duration
}

// New creates a transcript store. ttl bounds how long an idle session survives.
func New(s store, keyPrefix string, ttl time.Duration) *Store {
	return &Store{store: s, keyPrefix: keyPrefix, ttl: ttl}
}

// Recent returns up to n of the most recent exchanges for a session,
// oldest first. A missing session yields an empty transcript.
func (s *Store) Recent(ctx context.Context, sessionID string, n int) ([]domain.Exchange, error) {
	rows, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	exchanges := make([]domain.Exchange, len(rows))
	for i, row := range rows {
		exchanges[i] = domain.Exchange{User: row.User, Bot: row.Bot}
	}
	return exchanges, nil
}

// Append adds an exchange to a session transcript, trimming the oldest
// entries beyond domain.MaxStoredExchanges, and refreshes the TTL.
func (s *Store) Append(ctx context.Context, sessionID string, ex domain.Exchange) error {
	rows, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	rows = append(rows, exchangeRow{User: ex.User, Bot: ex.Bot})
	if len(rows) > domain.MaxStoredExchanges {
		rows = rows[len(rows)-domain.MaxStoredExchanges:]
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, s.key(sessionID), data, s.ttl); err != nil {
		return fmt.Errorf("store transcript %s: %w", sessionID, err)
	}
	return nil
}

// Clear removes a session transcript.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Del(ctx, s.key(sessionID)); err != nil {
		return fmt.Errorf("clear transcript %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, sessionID string) ([]exchangeRow, error) {
	data, err := s.store.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load transcript %s: %w", sessionID, err)
	}

	var rows []exchangeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		// A corrupt transcript should not break the chat; start fresh.
		return nil, nil
	}
	return rows, nil
}

func (s *Store) key(sessionID string) string {
	return s.keyPrefix + "session:" + sessionID + ":conversation"
}
