// Package users stores accounts and resolves credentials to user identities.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	dbpkg "github.com/canchat/canchat/internal/db"
)

const (
	defaultNickname = "new user"
	codeTTL         = 5 * time.Minute
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrEmailTaken           = errors.New("email already registered")
	ErrEmailAlreadyVerified = errors.New("email already verified")
	ErrCodeMismatch         = errors.New("verification code mismatch")
	ErrCodeExpired          = errors.New("verification code expired")
)

// CodeSender delivers a verification code to an email address.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// Service provides account registration, login, and profile management.
type Service struct {
	pool   *pgxpool.Pool
	sender CodeSender
	logger *slog.Logger
}

// NewService creates a user service. sender may be nil; codes are then only stored.
func NewService(log *slog.Logger, pool *pgxpool.Pool, sender CodeSender) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		sender: sender,
		logger: log.With(slog.String("service", "users")),
	}
}

const userColumns = `id, username, email, email_verified, nickname, avatar, bio, created_at, last_login`

// IssueVerificationCode generates a 6-digit code for the address, stores it
// with a 5 minute expiry, and hands it to the mail sender.
func (s *Service) IssueVerificationCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	var verified bool
	err := s.pool.QueryRow(ctx, `SELECT email_verified FROM users WHERE email = $1`, email).Scan(&verified)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup email: %w", err)
	}
	if err == nil && verified {
		return ErrEmailTaken
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(codeTTL)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pending_verifications (email, code, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		email, code, expiresAt)
	if err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendVerificationCode(ctx, email, code); err != nil {
			return fmt.Errorf("send verification code: %w", err)
		}
	}
	s.logger.Info("verification code issued", slog.String("email", email))
	return nil
}

// Register creates an account after checking the email verification code.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if req.Username == "" || req.Password == "" || req.Email == "" || req.Code == "" {
		return User{}, fmt.Errorf("username, password, email and code are required")
	}
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		nickname = defaultNickname
	}

	if err := s.checkPendingCode(ctx, req.Email, req.Code); err != nil {
		return User{}, err
	}

	var taken bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, req.Username).Scan(&taken); err != nil {
		return User{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return User{}, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, email_verified, password_hash, nickname)
		VALUES ($1, $2, TRUE, $3, $4)
		RETURNING `+userColumns,
		req.Username, req.Email, string(hashed), nickname)
	user, err := scanUser(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM pending_verifications WHERE email = $1`, req.Email); err != nil {
		s.logger.Warn("clear pending verification failed", slog.Any("error", err))
	}

	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Login validates a username/password pair and touches last_login on success.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	var (
		user User
		hash string
	)
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE username = $1`, username)
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.EmailVerified,
		&user.Nickname, &user.Avatar, &user.Bio, &user.CreatedAt, &user.LastLogin,
		&hash,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if _, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, now, user.ID); err != nil {
		s.logger.Warn("touch last login failed", slog.Any("error", err))
	} else {
		user.LastLogin = now
	}
	return user, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, userID int64) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetProfile returns the current nickname/avatar for a user, resolved at call time.
func (s *Service) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var p Profile
	row := s.pool.QueryRow(ctx, `SELECT id, nickname, avatar FROM users WHERE id = $1`, userID)
	if err := row.Scan(&p.UserID, &p.Nickname, &p.Avatar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of req and returns the updated user.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			nickname = COALESCE($2, nickname),
			avatar = COALESCE($3, avatar),
			bio = COALESCE($4, bio)
		WHERE id = $1
		RETURNING `+userColumns,
		userID, textOrNil(req.Nickname), textOrNil(req.Avatar), textOrNil(req.Bio))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// VerifyEmail marks an existing account's email as verified after checking the code.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return fmt.Errorf("email and code are required")
	}

	var (
		userID    int64
		stored    pgtype.Text
		expiresAt pgtype.Timestamptz
	)
	row := s.pool.QueryRow(ctx, `SELECT id, verification_code, code_expires_at FROM users WHERE email = $1`, email)
	if err := row.Scan(&userID, &stored, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !stored.Valid || stored.String != code {
		return ErrCodeMismatch
	}
	if dbpkg.TimeFromPg(expiresAt).Before(time.Now().UTC()) {
		return ErrCodeExpired
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE users SET email_verified = TRUE, verification_code = NULL, code_expires_at = NULL
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *Service) checkPendingCode(ctx context.Context, email, code string) error {
	var (
		stored    string
		expiresAt time.Time
	)
	row := s.pool.QueryRow(ctx, `SELECT code, expires_at FROM pending_verifications WHERE email = $1`, email)
	if err := row.Scan(&stored, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCodeMismatch
		}
		return fmt.Errorf("lookup verification code: %w", err)
	}
	if stored != code {
		return ErrCodeMismatch
	}
	if expiresAt.Before(time.Now().UTC()) {
		return ErrCodeExpired
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.EmailVerified,
		&user.Nickname, &user.Avatar, &user.Bio, &user.CreatedAt, &user.LastLogin,
	)
	return user, err
}

func textOrNil(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
