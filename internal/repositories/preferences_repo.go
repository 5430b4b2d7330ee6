package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mwaldhauser/loginguard/internal/database"
)

type PreferencesRepository struct {
	db *database.DB
}

func NewPreferencesRepository(db *database.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// SaveEntries upserts the given preference entries for the user in one
// transaction, so a partially flushed batch never becomes visible.
func (r *PreferencesRepository) SaveEntries(ctx context.Context, userID string, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO user_preferences (user_id, pref_key, pref_value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, pref_key)
		DO UPDATE SET pref_value = EXCLUDED.pref_value, updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for key, value := range entries {
			if _, err := tx.Exec(ctx, query, userID, key, value, now); err != nil {
				return database.MapPostgresError(err)
			}
		}
		return nil
	})
}

// DeleteForUser removes all stored preferences for the user.
func (r *PreferencesRepository) DeleteForUser(ctx context.Context, userID string) error {
	query := `DELETE FROM user_preferences WHERE user_id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, userID); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
