package users_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canchat/canchat/internal/users"
)

type captureSender struct {
	lastEmail string
	lastCode  string
}

func (c *captureSender) SendVerificationCode(_ context.Context, email, code string) error {
	c.lastEmail = email
	c.lastCode = code
	return nil
}

func setupUsersIntegrationTest(t *testing.T) (*users.Service, *captureSender, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sender := &captureSender{}
	svc := users.NewService(logger, pool, sender)
	return svc, sender, func() { pool.Close() }
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, sender, cleanup := setupUsersIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	username := fmt.Sprintf("it-user-%d", time.Now().UnixNano())

	if err := svc.IssueVerificationCode(ctx, email); err != nil {
		t.Fatalf("IssueVerificationCode: %v", err)
	}
	if sender.lastCode == "" {
		t.Fatal("expected a code to be delivered")
	}

	created, err := svc.Register(ctx, users.RegisterRequest{
		Username: username,
		Password: "pass-123",
		Email:    email,
		Code:     sender.lastCode,
		Nickname: "Tester",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !created.EmailVerified {
		t.Error("registration with a valid code should mark the email verified")
	}

	if _, err := svc.Login(ctx, username, "wrong"); !errors.Is(err, users.ErrInvalidCredentials) {
		t.Errorf("Login with bad password = %v, want ErrInvalidCredentials", err)
	}
	logged, err := svc.Login(ctx, username, "pass-123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != created.ID {
		t.Errorf("Login returned user %d, want %d", logged.ID, created.ID)
	}
}

func TestRegisterRejectsBadCode(t *testing.T) {
	svc, sender, cleanup := setupUsersIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	email := fmt.Sprintf("it-bad-%d@example.com", time.Now().UnixNano())
	if err := svc.IssueVerificationCode(ctx, email); err != nil {
		t.Fatalf("IssueVerificationCode: %v", err)
	}

	bad := "000000"
	if bad == sender.lastCode {
		bad = "000001"
	}
	_, err := svc.Register(ctx, users.RegisterRequest{
		Username: fmt.Sprintf("it-bad-%d", time.Now().UnixNano()),
		Password: "pass-123",
		Email:    email,
		Code:     bad,
	})
	if !errors.Is(err, users.ErrCodeMismatch) {
		t.Errorf("Register with wrong code = %v, want ErrCodeMismatch", err)
	}
}
