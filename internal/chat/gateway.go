package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/messages"
	"github.com/canchat/canchat/internal/users"
)

// Admission gates join/leave against persisted membership before any live
// subscription is allowed.
type Admission interface {
	Join(ctx context.Context, userID, channelID int64) error
	Leave(ctx context.Context, userID, channelID int64) error
	IsMember(ctx context.Context, userID, channelID int64) (bool, error)
	Get(ctx context.Context, channelID int64) (channels.Channel, error)
}

// ProfileDirectory resolves a user's current nickname and avatar.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, userID int64) (users.Profile, error)
}

// Gateway is the transport-agnostic surface of the realtime core: one owned
// instance per process, handed to every connection handler.
type Gateway struct {
	registry    *Registry
	broadcaster *Broadcaster
	admission   Admission
	profiles    ProfileDirectory
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGateway creates the gateway over its collaborators.
func NewGateway(log *slog.Logger, registry *Registry, broadcaster *Broadcaster, admission Admission, profiles ProfileDirectory) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		registry:    registry,
		broadcaster: broadcaster,
		admission:   admission,
		profiles:    profiles,
		logger:      log.With(slog.String("service", "gateway")),
		sessions:    make(map[string]*Session),
	}
}

// Connect creates and tracks a new anonymous session.
func (g *Gateway) Connect() *Session {
	sess := NewSession()
	g.mu.Lock()
	g.sessions[sess.ID()] = sess
	g.mu.Unlock()
	g.logger.Debug("connection opened", slog.String("connection_id", sess.ID()))
	return sess
}

// Authenticate binds a resolved user identity to the session. Credential
// resolution happens outside the core; the user id is trusted here, only its
// existence is confirmed.
func (g *Gateway) Authenticate(ctx context.Context, sess *Session, userID int64) (users.Profile, error) {
	profile, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		return users.Profile{}, fmt.Errorf("resolve user: %w", err)
	}
	if err := sess.Authenticate(userID); err != nil {
		return users.Profile{}, err
	}
	g.logger.Info("connection authenticated",
		slog.String("connection_id", sess.ID()),
		slog.Int64("user_id", userID))
	return profile, nil
}

// Join records a persisted membership. Conflicts surface as
// channels.ErrAlreadyMember; a missing channel as channels.ErrNotFound.
func (g *Gateway) Join(ctx context.Context, userID, channelID int64) error {
	return g.admission.Join(ctx, userID, channelID)
}

// Leave removes a persisted membership, with channels.ErrOwnerCannotLeave,
// channels.ErrNotMember, and channels.ErrNotFound as the failure modes. Any
// live subscriptions the user's connections hold on the channel are dropped
// so the live set never outlives durable membership.
func (g *Gateway) Leave(ctx context.Context, userID, channelID int64) error {
	if err := g.admission.Leave(ctx, userID, channelID); err != nil {
		return err
	}
	for _, sub := range g.registry.SubscribersOf(channelID) {
		if sub.UserID() == userID {
			g.registry.Unsubscribe(sub, channelID)
			sub.removeChannel(channelID)
		}
	}
	return nil
}

// Subscribe adds a live subscription for an authenticated session after
// confirming the channel exists and the user is a persisted member. Other
// current subscribers receive a presence notice.
func (g *Gateway) Subscribe(ctx context.Context, sess *Session, channelID int64) error {
	if sess.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if _, err := g.admission.Get(ctx, channelID); err != nil {
		return err
	}
	member, err := g.admission.IsMember(ctx, sess.UserID(), channelID)
	if err != nil {
		return err
	}
	if !member {
		return channels.ErrNotMember
	}

	g.registry.Subscribe(sess, channelID)
	sess.addChannel(channelID)

	g.broadcaster.NotifySystem(channelID, g.presenceText(ctx, sess.UserID(), "joined the channel"), sess)
	g.logger.Debug("live subscription added",
		slog.String("connection_id", sess.ID()),
		slog.Int64("channel_id", channelID))
	return nil
}

// Unsubscribe drops a live subscription; the durable membership stays.
func (g *Gateway) Unsubscribe(ctx context.Context, sess *Session, channelID int64) error {
	if sess.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	g.registry.Unsubscribe(sess, channelID)
	sess.removeChannel(channelID)

	g.broadcaster.NotifySystem(channelID, g.presenceText(ctx, sess.UserID(), "left the channel"), sess)
	return nil
}

// Send persists and broadcasts a message from a live-subscribed connection
// and returns the persisted message as the acknowledgment.
func (g *Gateway) Send(ctx context.Context, sess *Session, channelID int64, content, imageRef string) (messages.Message, error) {
	return g.broadcaster.PostMessage(ctx, sess, channelID, content, imageRef)
}

// SendFromUser posts on behalf of a persisted member without requiring a live
// subscription, for transports with no standing connection (image upload).
func (g *Gateway) SendFromUser(ctx context.Context, userID, channelID int64, content, imageRef string) (messages.Message, error) {
	if _, err := g.admission.Get(ctx, channelID); err != nil {
		return messages.Message{}, err
	}
	member, err := g.admission.IsMember(ctx, userID, channelID)
	if err != nil {
		return messages.Message{}, err
	}
	if !member {
		return messages.Message{}, channels.ErrNotMember
	}
	return g.broadcaster.PostFromUser(ctx, userID, channelID, content, imageRef)
}

// Disconnect tears the session out of the registry synchronously, then sends
// best-effort departure notices to the channels it was live in. Teardown
// completes even when every notice fails.
func (g *Gateway) Disconnect(ctx context.Context, sess *Session) {
	g.mu.Lock()
	delete(g.sessions, sess.ID())
	g.mu.Unlock()

	userID := sess.UserID()
	wasAuthenticated := sess.State() == StateAuthenticated
	channelIDs := g.registry.Teardown(sess)
	sess.Close()

	if wasAuthenticated {
		text := g.presenceText(ctx, userID, "left the channel")
		for _, channelID := range channelIDs {
			g.broadcaster.NotifySystem(channelID, text, sess)
		}
	}
	g.logger.Debug("connection closed",
		slog.String("connection_id", sess.ID()),
		slog.Int("live_channels", len(channelIDs)))
}

// AnnounceChannel pushes a channel_created event to every open connection.
func (g *Gateway) AnnounceChannel(ch channels.Channel) {
	frame, err := EncodeEvent(EventChannelCreated, ChannelCreatedPayload{Channel: ch})
	if err != nil {
		g.logger.Error("encode channel announcement", slog.Any("error", err))
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, sess := range g.sessions {
		if err := sess.Enqueue(frame); err != nil {
			continue
		}
	}
}

// presenceText renders a presence notice using the user's nickname as it is
// now, falling back to a neutral label if the lookup fails.
func (g *Gateway) presenceText(ctx context.Context, userID int64, suffix string) string {
	name := "A user"
	if profile, err := g.profiles.GetProfile(ctx, userID); err == nil && profile.Nickname != "" {
		name = profile.Nickname
	}
	return fmt.Sprintf("%s %s", name, suffix)
}
