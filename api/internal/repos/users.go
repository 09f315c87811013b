package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicconnect-backend/api/internal/models"
)

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) UpsertUserFromOIDC(ctx context.Context, subject string, email string, displayName string, role string) (models.User, error) {
	var user models.User
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (subject, email, display_name, role, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (subject) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			role = COALESCE(NULLIF(EXCLUDED.role, ''), users.role),
			last_login_at = EXCLUDED.last_login_at
		RETURNING user_id, subject, email, display_name, role, created_at, last_login_at
	`, subject, email, displayName, role, now).
		Scan(&user.UserID, &user.Subject, &user.Email, &user.DisplayName, &user.Role, &user.CreatedAt, &user.LastLoginAt)
	return user, err
}

func (r *UsersRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	var user models.User
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, subject, email, display_name, role, created_at, last_login_at
		FROM users
		WHERE user_id = $1
	`, userID).
		Scan(&user.UserID, &user.Subject, &user.Email, &user.DisplayName, &user.Role, &user.CreatedAt, &user.LastLoginAt)
	return user, err
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
