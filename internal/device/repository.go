package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no device matches.
var ErrNotFound = errors.New("device not found")

// Repository persists trusted devices.
type Repository interface {
	Find(ctx context.Context, userID, fingerprint string) (Device, error)
	Upsert(ctx context.Context, d Device) (Device, error)
	Touch(ctx context.Context, id string, at time.Time) error
	ListByUser(ctx context.Context, userID string) ([]Device, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const deviceColumns = `id, user_id, fingerprint, user_agent, browser, os, ip, last_used_at, created_at`

func (r *PostgresRepository) Find(ctx context.Context, userID, fingerprint string) (Device, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Device{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM trusted_devices WHERE user_id = $1 AND fingerprint = $2`, uid, fingerprint)
	return scanDevice(row)
}

// Upsert inserts the device or, when (user_id, fingerprint) already exists,
// refreshes its metadata and last-used time.
func (r *PostgresRepository) Upsert(ctx context.Context, d Device) (Device, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return Device{}, fmt.Errorf("device id: %w", err)
	}
	uid, err := uuid.Parse(d.UserID)
	if err != nil {
		return Device{}, fmt.Errorf("device user id: %w", err)
	}
	row := r.db.QueryRow(ctx, `INSERT INTO trusted_devices (id, user_id, fingerprint, user_agent, browser, os, ip, last_used_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id, fingerprint) DO UPDATE
        SET user_agent = EXCLUDED.user_agent, browser = EXCLUDED.browser, os = EXCLUDED.os, ip = EXCLUDED.ip,
            last_used_at = EXCLUDED.last_used_at
        RETURNING `+deviceColumns,
		id, uid, d.Fingerprint, d.Metadata.UserAgent, d.Metadata.Browser, d.Metadata.OS, d.Metadata.IP,
		d.LastUsedAt.UTC(), d.CreatedAt.UTC())
	return scanDevice(row)
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	did, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE trusted_devices SET last_used_at = $2 WHERE id = $1`, did, at.UTC())
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Device, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+deviceColumns+` FROM trusted_devices WHERE user_id = $1 ORDER BY last_used_at DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, nil
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM trusted_devices WHERE user_id = $1`, uid)
	if err != nil {
		return 0, fmt.Errorf("delete devices: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var (
		id, uid uuid.UUID
		d       Device
	)
	err := row.Scan(&id, &uid, &d.Fingerprint, &d.Metadata.UserAgent, &d.Metadata.Browser, &d.Metadata.OS,
		&d.Metadata.IP, &d.LastUsedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, fmt.Errorf("scan device: %w", err)
	}
	d.ID = id.String()
	d.UserID = uid.String()
	d.LastUsedAt = d.LastUsedAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}
