package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"video-cloud/internal/domain"
	"video-cloud/internal/repository"
)

type UserRepository struct {
	conns Connector
}

func NewUserRepository(conns Connector) repository.UserRepository {
	return &UserRepository{conns: conns}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	db, err := r.conns.DB(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.ExecContext(ctx, rebind(r.conns.Dialect(), `
INSERT INTO users (id, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`),
		user.ID,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db, err := r.conns.DB(ctx)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, rebind(r.conns.Dialect(), `
SELECT id, email, password_hash, created_at, updated_at
FROM users
WHERE email = ?`),
		email,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	db, err := r.conns.DB(ctx)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, rebind(r.conns.Dialect(), `
SELECT id, email, password_hash, created_at, updated_at
FROM users
WHERE id = ?`),
		id,
	)
	return scanUser(row)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
