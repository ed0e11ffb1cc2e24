// Package channels persists rooms and their long-lived memberships, and gates
// join/leave requests before any live subscription is allowed.
package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/canchat/canchat/internal/db"
)

var (
	ErrNotFound         = errors.New("channel not found")
	ErrAlreadyMember    = errors.New("already a member of this channel")
	ErrNotMember        = errors.New("not a member of this channel")
	ErrOwnerCannotLeave = errors.New("channel owner cannot leave")
)

// Service provides channel CRUD and the persisted-membership admission checks.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a channel service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "channels")),
	}
}

const channelColumns = `
	c.id, c.name, c.description, c.is_private, c.owner_id, c.created_at,
	(SELECT count(*) FROM memberships m WHERE m.channel_id = c.id) AS member_count`

// Create inserts a channel and records its owner as the first member.
func (s *Service) Create(ctx context.Context, ownerID int64, req CreateRequest) (Channel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Channel{}, fmt.Errorf("channel name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Channel{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var ch Channel
	row := tx.QueryRow(ctx, `
		INSERT INTO channels (name, description, is_private, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, is_private, owner_id, created_at`,
		name, strings.TrimSpace(req.Description), req.IsPrivate, ownerID)
	if err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.IsPrivate, &ch.OwnerID, &ch.CreatedAt); err != nil {
		return Channel{}, fmt.Errorf("create channel: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO memberships (user_id, channel_id) VALUES ($1, $2)`, ownerID, ch.ID); err != nil {
		return Channel{}, fmt.Errorf("add owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Channel{}, fmt.Errorf("commit: %w", err)
	}

	ch.MemberCount = 1
	s.logger.Info("channel created", slog.Int64("channel_id", ch.ID), slog.Int64("owner_id", ownerID))
	return ch, nil
}

// Get returns a channel with its member count.
func (s *Service) Get(ctx context.Context, channelID int64) (Channel, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels c WHERE c.id = $1`, channelID)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrNotFound
		}
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// GetDetail returns a channel plus whether userID is a member (userID 0 = anonymous).
func (s *Service) GetDetail(ctx context.Context, channelID, userID int64) (Detail, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Channel: ch}
	if userID != 0 {
		joined, err := s.IsMember(ctx, userID, channelID)
		if err != nil {
			return Detail{}, err
		}
		detail.IsJoined = joined
	}
	return detail, nil
}

// ListPublic returns all public channels, newest first.
func (s *Service) ListPublic(ctx context.Context) ([]Channel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+` FROM channels c
		WHERE c.is_private = FALSE
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list public channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// Search matches public channels by name or description substring, newest first.
func (s *Service) Search(ctx context.Context, keyword string) ([]Channel, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("search keyword is required")
	}
	pattern := "%" + keyword + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+` FROM channels c
		WHERE c.is_private = FALSE AND (c.name ILIKE $1 OR c.description ILIKE $1)
		ORDER BY c.created_at DESC`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// ListJoined returns the channels userID has durably joined, newest first.
func (s *Service) ListJoined(ctx context.Context, userID int64) ([]Channel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+` FROM channels c
		JOIN memberships mine ON mine.channel_id = c.id AND mine.user_id = $1
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list joined channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// IsMember reports whether a persisted membership row exists.
func (s *Service) IsMember(ctx context.Context, userID, channelID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE user_id = $1 AND channel_id = $2)`,
		userID, channelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// Join records a persisted membership. The conflict with an existing row is
// signalled explicitly as ErrAlreadyMember rather than swallowed.
func (s *Service) Join(ctx context.Context, userID, channelID int64) error {
	if err := s.channelExists(ctx, channelID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO memberships (user_id, channel_id) VALUES ($1, $2)`, userID, channelID)
	if err != nil {
		if dbpkg.IsUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return fmt.Errorf("join channel: %w", err)
	}
	s.logger.Info("membership added", slog.Int64("user_id", userID), slog.Int64("channel_id", channelID))
	return nil
}

// Leave removes a persisted membership. The owner can never leave while owning
// the channel, so the owner-is-member invariant holds.
func (s *Service) Leave(ctx context.Context, userID, channelID int64) error {
	var ownerID int64
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM channels WHERE id = $1`, channelID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get channel: %w", err)
	}
	if ownerID == userID {
		return ErrOwnerCannotLeave
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM memberships WHERE user_id = $1 AND channel_id = $2`, userID, channelID)
	if err != nil {
		return fmt.Errorf("leave channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	s.logger.Info("membership removed", slog.Int64("user_id", userID), slog.Int64("channel_id", channelID))
	return nil
}

func (s *Service) channelExists(ctx context.Context, channelID int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM channels WHERE id = $1)`, channelID).Scan(&exists); err != nil {
		return fmt.Errorf("check channel: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func scanChannel(row pgx.Row) (Channel, error) {
	var ch Channel
	err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.IsPrivate, &ch.OwnerID, &ch.CreatedAt, &ch.MemberCount)
	return ch, err
}

func collectChannels(rows pgx.Rows) ([]Channel, error) {
	items := make([]Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ch)
	}
	return items, rows.Err()
}
