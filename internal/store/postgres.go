package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

// PostgresRepo implements Repo on a pgx connection pool.
type PostgresRepo struct{ pool *pgxpool.Pool }

// OpenPostgres connects, pings and migrates the database behind dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepo, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required for postgres")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

const pgBirthdayColumns = `id, user_id, first_name, last_name, birth_date,
	COALESCE(phone, ''), COALESCE(email, ''), COALESCE(notes, ''),
	notification_enabled, COALESCE(notification_time, ''), notification_times,
	COALESCE(timezone, ''), created_at, updated_at`

func scanPgBirthday(row pgx.Row) (domain.BirthdayRecord, error) {
	var (
		rec domain.BirthdayRecord
		tz  string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.FirstName, &rec.LastName, &rec.BirthDate,
		&rec.Phone, &rec.Email, &rec.Notes,
		&rec.NotificationEnabled, &rec.NotificationTime, &rec.NotificationTimes,
		&tz, &rec.CreatedAt, &rec.UpdatedAt,
	)
	rec.Timezone = domain.ParseTimezone(tz)
	return rec, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNilTimes(times []string) []string {
	if times == nil {
		return []string{}
	}
	return times
}

func (r *PostgresRepo) CreateBirthday(ctx context.Context, rec *domain.BirthdayRecord) error {
	if rec == nil {
		return errors.New("nil birthday")
	}
	prepareCreate(rec)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO birthdays (id, user_id, first_name, last_name, birth_date, phone, email, notes,
			notification_enabled, notification_time, notification_times, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.UserID, rec.FirstName, rec.LastName, rec.BirthDate,
		nullIfEmpty(rec.Phone), nullIfEmpty(rec.Email), nullIfEmpty(rec.Notes),
		rec.NotificationEnabled, nullIfEmpty(rec.NotificationTime), nonNilTimes(rec.NotificationTimes),
		nullIfEmpty(rec.Timezone.String()), rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) UpdateBirthday(ctx context.Context, rec *domain.BirthdayRecord) error {
	if rec == nil {
		return errors.New("nil birthday")
	}
	rec.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE birthdays SET
			first_name           = $3,
			last_name            = $4,
			birth_date           = $5,
			phone                = $6,
			email                = $7,
			notes                = $8,
			notification_enabled = $9,
			notification_time    = $10,
			notification_times   = $11,
			timezone             = $12,
			updated_at           = $13
		WHERE id = $1 AND user_id = $2`,
		rec.ID, rec.UserID, rec.FirstName, rec.LastName, rec.BirthDate,
		nullIfEmpty(rec.Phone), nullIfEmpty(rec.Email), nullIfEmpty(rec.Notes),
		rec.NotificationEnabled, nullIfEmpty(rec.NotificationTime), nonNilTimes(rec.NotificationTimes),
		nullIfEmpty(rec.Timezone.String()), rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetBirthday(ctx context.Context, userID, id string) (*domain.BirthdayRecord, error) {
	rec, err := scanPgBirthday(r.pool.QueryRow(ctx,
		`SELECT `+pgBirthdayColumns+` FROM birthdays WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepo) ListBirthdays(ctx context.Context, userID string) ([]domain.BirthdayRecord, error) {
	return r.queryBirthdays(ctx,
		`SELECT `+pgBirthdayColumns+` FROM birthdays WHERE user_id = $1 ORDER BY last_name, first_name`,
		userID,
	)
}

func (r *PostgresRepo) ListEnabledBirthdays(ctx context.Context) ([]domain.BirthdayRecord, error) {
	return r.queryBirthdays(ctx,
		`SELECT `+pgBirthdayColumns+` FROM birthdays WHERE notification_enabled`,
	)
}

func (r *PostgresRepo) queryBirthdays(ctx context.Context, query string, args ...any) ([]domain.BirthdayRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.BirthdayRecord
	for rows.Next() {
		rec, err := scanPgBirthday(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r *PostgresRepo) DeleteBirthdays(ctx context.Context, userID string, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM birthdays WHERE user_id = $1 AND id = ANY($2)`,
		userID, ids,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) PutSettings(ctx context.Context, userID string, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for k, v := range kv {
		batch.Queue(`
			INSERT INTO user_settings (user_id, key, value, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, key) DO UPDATE SET
				value      = EXCLUDED.value,
				updated_at = EXCLUDED.updated_at`,
			userID, k, v, now,
		)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepo) ListSettings(ctx context.Context, userIDs ...string) ([]domain.SettingRow, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(userIDs) == 0 {
		rows, err = r.pool.Query(ctx,
			`SELECT user_id, key, value, updated_at FROM user_settings ORDER BY updated_at`)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT user_id, key, value, updated_at FROM user_settings WHERE user_id = ANY($1) ORDER BY updated_at`,
			userIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.SettingRow
	for rows.Next() {
		var row domain.SettingRow
		if err := rows.Scan(&row.UserID, &row.Key, &row.Value, &row.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

func (r *PostgresRepo) FindUserByTelegramChat(ctx context.Context, chatID int64) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx, `
		SELECT user_id FROM user_settings
		WHERE key = $1 AND value = $2
		ORDER BY updated_at DESC
		LIMIT 1`,
		domain.KeyTelegramChatID, strconv.FormatInt(chatID, 10),
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

func (r *PostgresRepo) AddPushToken(ctx context.Context, ep domain.PushEndpoint) error {
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO push_tokens (token, user_id, device_info, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET
			user_id     = EXCLUDED.user_id,
			device_info = EXCLUDED.device_info`,
		ep.Token, ep.UserID, nullIfEmpty(ep.DeviceInfo), ep.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListPushTokens(ctx context.Context, userID string) ([]domain.PushEndpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT token, user_id, COALESCE(device_info, ''), created_at
		FROM push_tokens
		WHERE user_id = $1
		ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.PushEndpoint
	for rows.Next() {
		var ep domain.PushEndpoint
		if err := rows.Scan(&ep.Token, &ep.UserID, &ep.DeviceInfo, &ep.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ep)
	}
	return res, rows.Err()
}

func (r *PostgresRepo) DeletePushToken(ctx context.Context, userID, token string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) DeletePushTokens(ctx context.Context, tokens ...string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE token = ANY($1)`, tokens)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) ClaimDelivery(ctx context.Context, d domain.Delivery, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries (record_id, fire_date, fire_time, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_id, fire_date, fire_time) DO NOTHING`,
		d.RecordID, d.FireDate, d.FireTime, at.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepo) PruneDeliveries(ctx context.Context, before string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM deliveries d
		WHERE d.fire_date < $1
		   OR NOT EXISTS (SELECT 1 FROM birthdays b WHERE b.id = d.record_id)`,
		before,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
