package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jeovahfialho/tradelog/internal/domain"
)

const userColumns = `id, email, username, hashed_password, role, created_at`

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getUser(ctx, "id = $1", id, id.String())
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email = $1", email, email)
}

func (s *Store) getUser(ctx context.Context, cond string, arg interface{}, label string) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)

	err := s.q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.HashedPassword,
		&role,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("User", label)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) UserExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)",
		email, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.q.Exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		u.ID, u.Email, u.Username, u.HashedPassword, string(u.Role), u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("email or username already taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context, excludeRole domain.Role) (int64, error) {
	query := "SELECT COUNT(*) FROM users"
	var args []interface{}
	if excludeRole != "" {
		query += " WHERE role <> $1"
		args = append(args, string(excludeRole))
	}

	var count int64
	if err := s.q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// DeleteUser removes the user; the foreign key cascades to its trades.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("User", id.String())
	}
	return nil
}
