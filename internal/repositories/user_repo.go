package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwaldhauser/loginguard/internal/database"
	"github.com/mwaldhauser/loginguard/internal/models"
	pkgauth "github.com/mwaldhauser/loginguard/pkg/auth"
)

const userColumns = `id, tenant_id, username, name, email, password_hash, stay_logged_in_key, role, status, last_login_at, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.TenantID, &user.Username, &user.Name, &user.Email,
		&passwordHash, &user.StayLoggedInKey, &user.Role, &user.Status,
		&lastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	key, err := pkgauth.GenerateStayLoggedInKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate stay-logged-in key: %w", err)
	}
	user.StayLoggedInKey = key

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.TenantID == "" {
		user.TenantID = "default"
	}
	if user.Role == "" {
		user.Role = "user"
	}
	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO users (id, tenant_id, username, name, email, password_hash, stay_logged_in_key, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.TenantID, user.Username, user.Name, user.Email,
		passwordHash, user.StayLoggedInKey, user.Role, user.Status,
		user.CreatedAt, user.UpdatedAt,
	))
}

// GetStayLoggedInKey returns the rotating secret embedded in persistent
// login cookies for the user.
func (r *UserRepository) GetStayLoggedInKey(ctx context.Context, id string) (string, error) {
	query := `SELECT stay_logged_in_key FROM users WHERE id = $1`

	var key string
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&key); err != nil {
		return "", database.MapPostgresError(err)
	}
	return key, nil
}

// RenewStayLoggedInKey replaces the user's rotating secret, invalidating
// all previously issued persistent login cookies.
func (r *UserRepository) RenewStayLoggedInKey(ctx context.Context, id, key string) error {
	query := `UPDATE users SET stay_logged_in_key = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Pool.Exec(ctx, query, key, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateLastLogin stamps the user's most recent successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	if _, err := r.db.Pool.Exec(ctx, query, at, id); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
