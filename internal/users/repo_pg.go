package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, name, password_hash, email_verified, email_verified_at, phone, avatar_url, google_sub, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, password_hash, email_verified, email_verified_at, phone, avatar_url, google_sub, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullableString(user.PasswordHash),
		user.EmailVerified,
		user.EmailVerifiedAt,
		nullableString(user.Phone),
		nullableString(user.AvatarURL),
		nullableString(user.GoogleSub),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) LIMIT 1`, email)
}

func (r *PGRepo) GetByGoogleSub(ctx context.Context, sub string) (User, error) {
	if sub == "" {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1 LIMIT 1`, sub)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg string) (User, error) {
	var user User
	var passwordHash, phone, avatarURL, googleSub sql.NullString
	var verifiedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&passwordHash,
		&user.EmailVerified,
		&verifiedAt,
		&phone,
		&avatarURL,
		&googleSub,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.PasswordHash = passwordHash.String
	user.Phone = phone.String
	user.AvatarURL = avatarURL.String
	user.GoogleSub = googleSub.String
	if verifiedAt.Valid {
		user.EmailVerifiedAt = &verifiedAt.Time
	}
	return user, nil
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users SET
  email = $2,
  name = $3,
  password_hash = $4,
  email_verified = $5,
  email_verified_at = $6,
  phone = $7,
  avatar_url = $8,
  google_sub = $9,
  updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullableString(user.PasswordHash),
		user.EmailVerified,
		user.EmailVerifiedAt,
		nullableString(user.Phone),
		nullableString(user.AvatarURL),
		nullableString(user.GoogleSub),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) CreateVerification(ctx context.Context, v Verification) error {
	const query = `
INSERT INTO email_verifications (token, user_id, expires_at, created_at)
VALUES ($1, $2, $3, now())`
	_, err := r.DB.ExecContext(ctx, query, v.Token, v.UserID, v.ExpiresAt)
	return err
}

func (r *PGRepo) ConsumeVerification(ctx context.Context, token string, now time.Time) (Verification, error) {
	const consume = `
UPDATE email_verifications
SET consumed_at = $2
WHERE token = $1 AND consumed_at IS NULL AND expires_at >= $2
RETURNING user_id, expires_at, created_at`
	v := Verification{Token: token}
	err := r.DB.QueryRowContext(ctx, consume, token, now).Scan(&v.UserID, &v.ExpiresAt, &v.CreatedAt)
	if err == nil {
		consumed := now
		v.ConsumedAt = &consumed
		return v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Verification{}, err
	}

	const inspect = `SELECT expires_at, consumed_at FROM email_verifications WHERE token = $1`
	var expiresAt time.Time
	var consumedAt sql.NullTime
	if err := r.DB.QueryRowContext(ctx, inspect, token).Scan(&expiresAt, &consumedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Verification{}, ErrTokenInvalid
		}
		return Verification{}, err
	}
	if !consumedAt.Valid && now.After(expiresAt) {
		return Verification{}, ErrTokenExpired
	}
	return Verification{}, ErrTokenInvalid
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
