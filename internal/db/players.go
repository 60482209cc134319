package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blazerelay/server/internal/persistence"
)

// PlayerRepo implements persistence.PlayerRepository against PostgreSQL.
type PlayerRepo struct {
	pool *pgxpool.Pool
}

func scanPlayer(row pgx.Row) (*persistence.Player, error) {
	var p persistence.Player
	var passwordHash *string
	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &passwordHash, &p.Role, &p.Origin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning player: %v", persistence.ErrUnavailable, err)
	}
	if passwordHash != nil {
		p.PasswordHash = *passwordHash
	}
	return &p, nil
}

// ByID looks up a player by id.
func (r *PlayerRepo) ByID(ctx context.Context, id int64) (*persistence.Player, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, role, origin FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

// ByEmail looks up a player by email.
func (r *PlayerRepo) ByEmail(ctx context.Context, email string) (*persistence.Player, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, role, origin FROM players WHERE email = $1`, email)
	return scanPlayer(row)
}

// Create inserts a new player. passwordHash is empty for origin-linked accounts.
func (r *PlayerRepo) Create(ctx context.Context, email, displayName, passwordHash string, role persistence.Role) (*persistence.Player, error) {
	var hash *string
	origin := passwordHash == ""
	if !origin {
		hash = &passwordHash
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO players (email, display_name, password_hash, role, origin)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		email, displayName, hash, role, origin,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("%w: creating player %q: %v", persistence.ErrUnavailable, email, err)
	}

	return &persistence.Player{
		ID:           id,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         role,
		Origin:       origin,
	}, nil
}

// SetPassword replaces the stored password hash.
func (r *PlayerRepo) SetPassword(ctx context.Context, playerID int64, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE players SET password_hash = $1, origin = FALSE WHERE id = $2`, passwordHash, playerID)
	if err != nil {
		return fmt.Errorf("%w: setting password for player %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	return nil
}

// SetRole changes the account's role.
func (r *PlayerRepo) SetRole(ctx context.Context, playerID int64, role persistence.Role) error {
	_, err := r.pool.Exec(ctx, `UPDATE players SET role = $1 WHERE id = $2`, role, playerID)
	if err != nil {
		return fmt.Errorf("%w: setting role for player %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	return nil
}

// SetDetails updates the display name.
func (r *PlayerRepo) SetDetails(ctx context.Context, playerID int64, displayName string) error {
	_, err := r.pool.Exec(ctx, `UPDATE players SET display_name = $1 WHERE id = $2`, displayName, playerID)
	if err != nil {
		return fmt.Errorf("%w: setting details for player %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	return nil
}
