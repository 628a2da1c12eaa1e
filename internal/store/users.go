package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
)

func CreateUser(ctx context.Context, db DBTX, email, passwordHash string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, LOWER($2), $3, NOW())
		RETURNING id, email, password_hash, created_at`

	err := db.QueryRowContext(ctx, query, uuid.New(), email, passwordHash).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, database.Translate(err, "create user", database.ErrEmailTaken, nil)
	}

	return user, nil
}

func GetUser(ctx context.Context, db DBTX, id uuid.UUID) (*models.User, error) {
	return getUserWhere(ctx, db, "id = $1", id)
}

func GetUserByEmail(ctx context.Context, db DBTX, email string) (*models.User, error) {
	return getUserWhere(ctx, db, "email = LOWER($1)", email)
}

func getUserWhere(ctx context.Context, db DBTX, cond string, arg any) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE ` + cond

	err := db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
