package channels_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canchat/canchat/internal/channels"
)

func setupChannelsIntegrationTest(t *testing.T) (*channels.Service, *pgxpool.Pool, func()) {
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
	return channels.NewService(logger, pool), pool, func() { pool.Close() }
}

func createTestUser(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (username, email, password_hash, nickname)
		VALUES ($1, $2, 'x', 'Tester')
		RETURNING id`,
		fmt.Sprintf("ch-user-%d", time.Now().UnixNano()),
		fmt.Sprintf("ch-%d@example.com", time.Now().UnixNano()),
	).Scan(&id)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return id
}

func TestJoinLeaveLifecycle(t *testing.T) {
	svc, pool, cleanup := setupChannelsIntegrationTest(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, pool)
	member := createTestUser(t, pool)

	ch, err := svc.Create(ctx, owner, channels.CreateRequest{Name: "lifecycle"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ch.MemberCount != 1 {
		t.Errorf("MemberCount = %d, want 1 (owner auto-joins)", ch.MemberCount)
	}

	if err := svc.Join(ctx, member, ch.ID); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := svc.Join(ctx, member, ch.ID); !errors.Is(err, channels.ErrAlreadyMember) {
		t.Errorf("second Join = %v, want ErrAlreadyMember", err)
	}

	if err := svc.Leave(ctx, owner, ch.ID); !errors.Is(err, channels.ErrOwnerCannotLeave) {
		t.Errorf("owner Leave = %v, want ErrOwnerCannotLeave", err)
	}
	if err := svc.Leave(ctx, member, ch.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := svc.Leave(ctx, member, ch.ID); !errors.Is(err, channels.ErrNotMember) {
		t.Errorf("second Leave = %v, want ErrNotMember", err)
	}

	// Rejoin after leave succeeds again.
	if err := svc.Join(ctx, member, ch.ID); err != nil {
		t.Errorf("rejoin = %v, want success", err)
	}
}

func TestJoinUnknownChannel(t *testing.T) {
	svc, pool, cleanup := setupChannelsIntegrationTest(t)
	defer cleanup()

	user := createTestUser(t, pool)
	if err := svc.Join(context.Background(), user, -1); !errors.Is(err, channels.ErrNotFound) {
		t.Errorf("Join(-1) = %v, want ErrNotFound", err)
	}
	if err := svc.Leave(context.Background(), user, -1); !errors.Is(err, channels.ErrNotFound) {
		t.Errorf("Leave(-1) = %v, want ErrNotFound", err)
	}
}
