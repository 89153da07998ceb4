package db

import "fmt"

// handshakeSchema stores one row per OAuth redirect handshake between the
// redirect out and the callback. Timestamps are unix seconds.
const handshakeSchema = `
CREATE TABLE IF NOT EXISTS handshake_flows (
    id                     TEXT PRIMARY KEY,
    intent                 TEXT NOT NULL CHECK (intent IN ('sign_in', 'sign_up')),
    strategy               TEXT NOT NULL,
    code_verifier          TEXT NOT NULL,
    origin                 TEXT NOT NULL DEFAULT '',
    redirect_url           TEXT NOT NULL,
    redirect_url_complete  TEXT NOT NULL,
    created_at             INTEGER NOT NULL,
    expires_at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_handshake_flows_expires_at ON handshake_flows(expires_at);
`

func (db *DB) RunMigrations() error {
	if _, err := db.Exec(handshakeSchema); err != nil {
		return fmt.Errorf("failed to run handshake migrations: %w", err)
	}
	return nil
}
