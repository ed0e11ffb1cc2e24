package messages_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canchat/canchat/internal/messages"
)

func setupMessagesIntegrationTest(t *testing.T) (*messages.Service, *pgxpool.Pool, func()) {
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
	return messages.NewService(logger, pool), pool, func() { pool.Close() }
}

func createSenderAndChannel(t *testing.T, pool *pgxpool.Pool) (userID, channelID int64) {
	t.Helper()
	ctx := context.Background()
	nonce := time.Now().UnixNano()
	err := pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, nickname, avatar)
		VALUES ($1, $2, 'x', 'Sender', '/media/avatars/aa/aa.png')
		RETURNING id`,
		fmt.Sprintf("msg-user-%d", nonce),
		fmt.Sprintf("msg-%d@example.com", nonce),
	).Scan(&userID)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	err = pool.QueryRow(ctx, `
		INSERT INTO channels (name, description, owner_id)
		VALUES ($1, 'history test', $2)
		RETURNING id`,
		fmt.Sprintf("msg-channel-%d", nonce), userID,
	).Scan(&channelID)
	if err != nil {
		t.Fatalf("create test channel: %v", err)
	}
	return userID, channelID
}

func TestCreateHydratesSenderProfile(t *testing.T) {
	svc, pool, cleanup := setupMessagesIntegrationTest(t)
	defer cleanup()
	ctx := context.Background()

	userID, channelID := createSenderAndChannel(t, pool)

	msg, err := svc.Create(ctx, channelID, userID, "first", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("message has no id")
	}
	if msg.SenderNickname != "Sender" {
		t.Fatalf("sender nickname = %q", msg.SenderNickname)
	}
	if msg.SenderAvatar == "" {
		t.Fatal("sender avatar not hydrated")
	}
	if msg.ChannelID != channelID || msg.SenderID != userID {
		t.Fatalf("message = %+v", msg)
	}
}

func TestListByChannelReturnsPostingOrder(t *testing.T) {
	svc, pool, cleanup := setupMessagesIntegrationTest(t)
	defer cleanup()
	ctx := context.Background()

	userID, channelID := createSenderAndChannel(t, pool)

	var ids []int64
	for i := 0; i < 5; i++ {
		msg, err := svc.Create(ctx, channelID, userID, fmt.Sprintf("msg %d", i), "")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, msg.ID)
	}
	// An image message interleaves with the text ones.
	imgMsg, err := svc.Create(ctx, channelID, userID, "", "/media/messages/ab/abcd.png")
	if err != nil {
		t.Fatalf("create image message: %v", err)
	}
	ids = append(ids, imgMsg.ID)

	history, err := svc.ListByChannel(ctx, channelID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != len(ids) {
		t.Fatalf("history length = %d, want %d", len(history), len(ids))
	}
	for i, msg := range history {
		if msg.ID != ids[i] {
			t.Fatalf("history[%d].ID = %d, want %d", i, msg.ID, ids[i])
		}
	}
	if history[len(history)-1].Image == "" {
		t.Fatal("image message lost its image reference")
	}
}
