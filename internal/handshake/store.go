package handshake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/markb/livedocs/internal/identity"
)

// FlowTTL is how long a started handshake may wait for its callback.
const FlowTTL = 10 * time.Minute

// ErrFlowNotFound is returned when the callback's state is unknown, expired or
// already used.
var ErrFlowNotFound = errors.New("sign-in session not found or expired")

// Flow is what the application remembers between the redirect out and the
// provider's callback. ID is the OAuth state value.
type Flow struct {
	ID                  string
	Intent              identity.Intent
	Strategy            identity.Strategy
	Verifier            string
	Origin              string
	RedirectURL         string
	RedirectURLComplete string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// Store keeps handshake flows in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a Store on a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save records a new flow that expires after FlowTTL.
func (s *Store) Save(ctx context.Context, flow *Flow) error {
	if flow.ID == "" {
		return errors.New("flow id is required")
	}
	now := s.now().UTC()
	flow.CreatedAt = now.Truncate(time.Second)
	flow.ExpiresAt = now.Add(FlowTTL).Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handshake_flows (id, intent, strategy, code_verifier, origin, redirect_url, redirect_url_complete, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flow.ID, string(flow.Intent), string(flow.Strategy), flow.Verifier, flow.Origin,
		flow.RedirectURL, flow.RedirectURLComplete, flow.CreatedAt.Unix(), flow.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// Take loads and deletes the flow with the given id. A flow can be taken once;
// later calls and expired flows return ErrFlowNotFound.
func (s *Store) Take(ctx context.Context, id string) (*Flow, error) {
	if id == "" {
		return nil, ErrFlowNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		flow               Flow
		intent, strategy   string
		createdAt, expires int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, intent, strategy, code_verifier, origin, redirect_url, redirect_url_complete, created_at, expires_at
		FROM handshake_flows WHERE id = ?`, id).
		Scan(&flow.ID, &intent, &strategy, &flow.Verifier, &flow.Origin,
			&flow.RedirectURL, &flow.RedirectURLComplete, &createdAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load flow: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM handshake_flows WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete flow: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	flow.Intent = identity.Intent(intent)
	flow.Strategy = identity.Strategy(strategy)
	flow.CreatedAt = time.Unix(createdAt, 0).UTC()
	flow.ExpiresAt = time.Unix(expires, 0).UTC()

	if !s.now().Before(flow.ExpiresAt) {
		return nil, ErrFlowNotFound
	}
	return &flow, nil
}

// CleanupExpired deletes expired flows and returns how many were removed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM handshake_flows WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup flows: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored flows, expired or not.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM handshake_flows").Scan(&n); err != nil {
		return 0, fmt.Errorf("count flows: %w", err)
	}
	return n, nil
}
