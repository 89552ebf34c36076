// Package authz answers session authorization from the sessions table.
package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/domain"
)

// A room id is the id of an in-progress session; either side of the
// session may join it.
const canJoinQuery = `SELECT 1 FROM sessions
WHERE id = $1 AND (counselor_id = $2 OR client_id = $2) AND status = 'in-progress'
LIMIT 1`

const queryTimeout = 3 * time.Second

type PostgresAuthorizer struct {
	db *sql.DB
}

func NewPostgresAuthorizer(db *sql.DB) *PostgresAuthorizer {
	return &PostgresAuthorizer{db: db}
}

// Open connects and pings the database behind dsn.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (a *PostgresAuthorizer) CanJoin(ctx context.Context, userID domain.UserID, roomID domain.RoomID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var one int
	err := a.db.QueryRowContext(ctx, canJoinQuery, string(roomID), string(userID)).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		log.Debug().Str("module", "authz").Str("user", string(userID)).Str("room", string(roomID)).Msg("no active session")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query session %s: %w", roomID, err)
	}
	return true, nil
}
