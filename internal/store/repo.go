package store

import (
	"context"
	"errors"
	"time"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

// ErrNotFound is returned when a row addressed by id does not exist for the user.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for birthday records, settings and push endpoints.
type Repo interface {
	CreateBirthday(ctx context.Context, r *domain.BirthdayRecord) error
	UpdateBirthday(ctx context.Context, r *domain.BirthdayRecord) error
	GetBirthday(ctx context.Context, userID, id string) (*domain.BirthdayRecord, error)
	ListBirthdays(ctx context.Context, userID string) ([]domain.BirthdayRecord, error)
	ListEnabledBirthdays(ctx context.Context) ([]domain.BirthdayRecord, error)
	DeleteBirthdays(ctx context.Context, userID string, ids ...string) (int64, error)

	PutSettings(ctx context.Context, userID string, kv map[string]string) error
	// ListSettings returns setting rows for the given users, or for everyone when none are given.
	ListSettings(ctx context.Context, userIDs ...string) ([]domain.SettingRow, error)
	FindUserByTelegramChat(ctx context.Context, chatID int64) (string, error)

	AddPushToken(ctx context.Context, ep domain.PushEndpoint) error
	ListPushTokens(ctx context.Context, userID string) ([]domain.PushEndpoint, error)
	// DeletePushToken removes one of the user's tokens.
	DeletePushToken(ctx context.Context, userID, token string) (int64, error)
	// DeletePushTokens removes tokens of any owner; used to prune tokens FCM rejected.
	DeletePushTokens(ctx context.Context, tokens ...string) (int64, error)

	// ClaimDelivery records a delivery and reports whether this call was the first to do so.
	ClaimDelivery(ctx context.Context, d domain.Delivery, at time.Time) (bool, error)
	// PruneDeliveries drops ledger rows fired before the given YYYY-MM-DD date and rows of deleted records.
	PruneDeliveries(ctx context.Context, before string) (int64, error)

	Close() error
}

// Open picks a repository implementation by driver name.
func Open(ctx context.Context, driver, sqlitePath, databaseURL string) (Repo, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(ctx, sqlitePath)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, databaseURL)
	}
	return nil, errors.New("unknown db driver: " + driver)
}
