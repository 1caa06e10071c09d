package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const sqliteBirthdayColumns = `id, user_id, first_name, last_name, birth_date, phone, email, notes,
	notification_enabled, notification_time, notification_times, timezone, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBirthday(s rowScanner) (domain.BirthdayRecord, error) {
	var (
		rec        domain.BirthdayRecord
		phone      sql.NullString
		email      sql.NullString
		notes      sql.NullString
		enabledInt int
		single     sql.NullString
		times      sql.NullString
		tz         sql.NullString
		createdAt  int64
		updatedAt  int64
	)
	if err := s.Scan(
		&rec.ID, &rec.UserID, &rec.FirstName, &rec.LastName, &rec.BirthDate,
		&phone, &email, &notes,
		&enabledInt, &single, &times, &tz, &createdAt, &updatedAt,
	); err != nil {
		return rec, err
	}
	rec.Phone = phone.String
	rec.Email = email.String
	rec.Notes = notes.String
	rec.NotificationEnabled = enabledInt != 0
	rec.NotificationTime = single.String
	rec.NotificationTimes = decodeTimes(times)
	rec.Timezone = domain.ParseTimezone(tz.String)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

// CreateBirthday inserts a new record, assigning an id when empty.
func (r *SQLiteRepo) CreateBirthday(ctx context.Context, rec *domain.BirthdayRecord) error {
	if rec == nil {
		return errors.New("nil birthday")
	}
	prepareCreate(rec)
	times, err := encodeTimes(rec.NotificationTimes)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO birthdays (`+sqliteBirthdayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.FirstName, rec.LastName, rec.BirthDate,
		toNullString(rec.Phone), toNullString(rec.Email), toNullString(rec.Notes),
		boolToInt(rec.NotificationEnabled), toNullString(rec.NotificationTime), times,
		toNullString(rec.Timezone.String()), rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	return err
}

// UpdateBirthday overwrites a record owned by rec.UserID.
func (r *SQLiteRepo) UpdateBirthday(ctx context.Context, rec *domain.BirthdayRecord) error {
	if rec == nil {
		return errors.New("nil birthday")
	}
	rec.UpdatedAt = time.Now().UTC()
	times, err := encodeTimes(rec.NotificationTimes)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE birthdays SET
			first_name           = ?,
			last_name            = ?,
			birth_date           = ?,
			phone                = ?,
			email                = ?,
			notes                = ?,
			notification_enabled = ?,
			notification_time    = ?,
			notification_times   = ?,
			timezone             = ?,
			updated_at           = ?
		WHERE id = ? AND user_id = ?`,
		rec.FirstName, rec.LastName, rec.BirthDate,
		toNullString(rec.Phone), toNullString(rec.Email), toNullString(rec.Notes),
		boolToInt(rec.NotificationEnabled), toNullString(rec.NotificationTime), times,
		toNullString(rec.Timezone.String()), rec.UpdatedAt.Unix(),
		rec.ID, rec.UserID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBirthday returns one record of the user or ErrNotFound.
func (r *SQLiteRepo) GetBirthday(ctx context.Context, userID, id string) (*domain.BirthdayRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sqliteBirthdayColumns+`
		FROM birthdays
		WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	rec, err := scanSQLiteBirthday(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListBirthdays returns the user's records ordered by name.
func (r *SQLiteRepo) ListBirthdays(ctx context.Context, userID string) ([]domain.BirthdayRecord, error) {
	return r.queryBirthdays(ctx, `
		SELECT `+sqliteBirthdayColumns+`
		FROM birthdays
		WHERE user_id = ?
		ORDER BY last_name, first_name`,
		userID,
	)
}

// ListEnabledBirthdays returns every record with notifications enabled, across users.
func (r *SQLiteRepo) ListEnabledBirthdays(ctx context.Context) ([]domain.BirthdayRecord, error) {
	return r.queryBirthdays(ctx, `
		SELECT `+sqliteBirthdayColumns+`
		FROM birthdays
		WHERE notification_enabled = 1`,
	)
}

func (r *SQLiteRepo) queryBirthdays(ctx context.Context, query string, args ...any) ([]domain.BirthdayRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.BirthdayRecord
	for rows.Next() {
		rec, err := scanSQLiteBirthday(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteBirthdays removes the given records of the user and reports how many went away.
func (r *SQLiteRepo) DeleteBirthdays(ctx context.Context, userID string, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM birthdays WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PutSettings upserts the given keys; the latest write wins.
func (r *SQLiteRepo) PutSettings(ctx context.Context, userID string, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	now := time.Now().UTC().Unix()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for k, v := range kv {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_settings (user_id, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, key) DO UPDATE SET
				value      = excluded.value,
				updated_at = excluded.updated_at`,
			userID, k, v, now,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListSettings returns setting rows for the given users (all users when empty).
func (r *SQLiteRepo) ListSettings(ctx context.Context, userIDs ...string) ([]domain.SettingRow, error) {
	query := `SELECT user_id, key, value, updated_at FROM user_settings`
	args := make([]any, 0, len(userIDs))
	if len(userIDs) > 0 {
		query += ` WHERE user_id IN (` + placeholders(len(userIDs)) + `)`
		for _, id := range userIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY updated_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.SettingRow
	for rows.Next() {
		var (
			row       domain.SettingRow
			updatedAt int64
		)
		if err := rows.Scan(&row.UserID, &row.Key, &row.Value, &updatedAt); err != nil {
			return nil, err
		}
		row.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// FindUserByTelegramChat resolves a linked Telegram chat back to its user.
func (r *SQLiteRepo) FindUserByTelegramChat(ctx context.Context, chatID int64) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id FROM user_settings
		WHERE key = ? AND value = ?
		ORDER BY updated_at DESC
		LIMIT 1`,
		domain.KeyTelegramChatID, strconv.FormatInt(chatID, 10),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// AddPushToken registers a token; re-registering moves it to the new owner.
func (r *SQLiteRepo) AddPushToken(ctx context.Context, ep domain.PushEndpoint) error {
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_tokens (token, user_id, device_info, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			user_id     = excluded.user_id,
			device_info = excluded.device_info`,
		ep.Token, ep.UserID, toNullString(ep.DeviceInfo), ep.CreatedAt.Unix(),
	)
	return err
}

// ListPushTokens returns all endpoints of a user.
func (r *SQLiteRepo) ListPushTokens(ctx context.Context, userID string) ([]domain.PushEndpoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT token, user_id, device_info, created_at
		FROM push_tokens
		WHERE user_id = ?
		ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.PushEndpoint
	for rows.Next() {
		var (
			ep        domain.PushEndpoint
			device    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&ep.Token, &ep.UserID, &device, &createdAt); err != nil {
			return nil, err
		}
		ep.DeviceInfo = device.String
		ep.CreatedAt = time.Unix(createdAt, 0).UTC()
		res = append(res, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *SQLiteRepo) DeletePushToken(ctx context.Context, userID, token string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM push_tokens WHERE user_id = ? AND token = ?`,
		userID, token,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeletePushTokens removes tokens regardless of owner.
func (r *SQLiteRepo) DeletePushTokens(ctx context.Context, tokens ...string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	args := make([]any, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM push_tokens WHERE token IN (`+placeholders(len(tokens))+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimDelivery inserts the ledger row; false means another tick already claimed it.
func (r *SQLiteRepo) ClaimDelivery(ctx context.Context, d domain.Delivery, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (record_id, fire_date, fire_time, sent_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(record_id, fire_date, fire_time) DO NOTHING`,
		d.RecordID, d.FireDate, d.FireTime, at.UTC().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepo) PruneDeliveries(ctx context.Context, before string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM deliveries
		WHERE fire_date < ?
		   OR record_id NOT IN (SELECT id FROM birthdays)`,
		before,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
