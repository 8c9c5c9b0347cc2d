package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned by repositories when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by Create when the email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

const uniqueViolation = "23505"

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	LinkExternalID(ctx context.Context, id, externalID string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, profile Profile, at time.Time) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, full_name, password_hash, profile_pic, bio, native_language,
        learning_language, location, COALESCE(external_id, ''), is_email_verified, is_onboarded, created_at, updated_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	var externalID *string
	if user.ExternalID != "" {
		externalID = &user.ExternalID
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, email, full_name, password_hash, profile_pic, bio, native_language,
        learning_language, location, external_id, is_email_verified, is_onboarded, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		userID, user.Email, user.FullName, user.PasswordHash, user.ProfilePic, user.Bio, user.NativeLanguage,
		user.LearningLanguage, user.Location, externalID, user.EmailVerified, user.Onboarded,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail fetches a user by exact email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// MarkEmailVerified flips is_email_verified on.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET is_email_verified = TRUE, updated_at = $2 WHERE id = $1`, id, at.UTC())
}

// LinkExternalID records the federated subject for an existing account.
func (r *PostgresRepository) LinkExternalID(ctx context.Context, id, externalID string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET external_id = $2, updated_at = $3 WHERE id = $1`, id, externalID, at.UTC())
}

// UpdateProfile stores onboarding fields and marks the user onboarded.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p Profile, at time.Time) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE users SET full_name = $2, bio = $3, native_language = $4, learning_language = $5,
        location = $6, profile_pic = COALESCE(NULLIF($7, ''), profile_pic), is_onboarded = TRUE, updated_at = $8
        WHERE id = $1 RETURNING `+userColumns,
		userID, p.FullName, p.Bio, p.NativeLanguage, p.LearningLanguage, p.Location, p.ProfilePic, at.UTC())
	return scanUser(row)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, id string, args ...any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id   uuid.UUID
		user User
	)
	err := row.Scan(&id, &user.Email, &user.FullName, &user.PasswordHash, &user.ProfilePic, &user.Bio,
		&user.NativeLanguage, &user.LearningLanguage, &user.Location, &user.ExternalID,
		&user.EmailVerified, &user.Onboarded, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}
