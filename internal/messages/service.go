// Package messages persists channel messages and serves ordered history.
package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/canchat/canchat/internal/db"
)

// ErrStoreUnavailable marks a transient persistence failure; the caller may retry.
var ErrStoreUnavailable = errors.New("message store unavailable")

// Service persists and reads channel messages.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "messages")),
	}
}

// Create appends a message with a server-assigned id and timestamp, returning
// it hydrated with the sender's current nickname and avatar. Ids are taken from
// a single sequence, so they are monotonic within every channel.
func (s *Service) Create(ctx context.Context, channelID, senderID int64, content, imageRef string) (Message, error) {
	var msg Message
	row := s.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO messages (content, image, sender_id, channel_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, content, image, sender_id, channel_id, created_at
		)
		SELECT i.id, i.content, i.image, i.sender_id, u.nickname, u.avatar, i.channel_id, i.created_at
		FROM inserted i
		JOIN users u ON u.id = i.sender_id`,
		content, dbpkg.ToPgText(imageRef), senderID, channelID)
	if err := scanMessage(row, &msg); err != nil {
		return Message{}, storeErr("create message", err)
	}
	return msg, nil
}

// ListByChannel returns a channel's full history ordered by (created_at, id)
// ascending, the same total order in which messages were broadcast.
func (s *Service) ListByChannel(ctx context.Context, channelID int64) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.content, m.image, m.sender_id, u.nickname, u.avatar, m.channel_id, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.channel_id = $1
		ORDER BY m.created_at ASC, m.id ASC`, channelID)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, storeErr("scan message", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list messages", err)
	}
	return items, nil
}

func scanMessage(row pgx.Row, msg *Message) error {
	var image *string
	err := row.Scan(
		&msg.ID, &msg.Content, &image, &msg.SenderID,
		&msg.SenderNickname, &msg.SenderAvatar, &msg.ChannelID, &msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	if image != nil {
		msg.Image = *image
	}
	return nil
}

// storeErr tags connection-level failures as retryable; constraint and data
// errors pass through unchanged.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
