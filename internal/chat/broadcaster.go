package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/canchat/canchat/internal/messages"
)

// MessageStore is the persistence boundary the broadcaster writes through.
type MessageStore interface {
	Create(ctx context.Context, channelID, senderID int64, content, imageRef string) (messages.Message, error)
}

// Broadcaster persists a message and fans it out to a channel's current live
// subscribers. A per-channel mutex is the serialization point that keeps
// persisted order and broadcast order identical within each channel.
type Broadcaster struct {
	registry *Registry
	store    MessageStore
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewBroadcaster creates a broadcaster over the given registry and store.
func NewBroadcaster(log *slog.Logger, registry *Registry, store MessageStore) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		store:    store,
		logger:   log.With(slog.String("service", "broadcaster")),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// PostMessage persists and broadcasts a message from a live-subscribed
// connection. A persisted member whose connection has not joined the channel
// on this session cannot post through it.
func (b *Broadcaster) PostMessage(ctx context.Context, sess *Session, channelID int64, content, imageRef string) (messages.Message, error) {
	if sess.State() != StateAuthenticated {
		return messages.Message{}, ErrNotAuthenticated
	}
	if !sess.JoinedChannel(channelID) {
		return messages.Message{}, ErrNotSubscribed
	}
	return b.post(ctx, sess.UserID(), channelID, content, imageRef)
}

// PostFromUser persists and broadcasts a message on behalf of a user without
// a live connection, e.g. the HTTP image-message path. The caller is
// responsible for the persisted-membership check.
func (b *Broadcaster) PostFromUser(ctx context.Context, userID, channelID int64, content, imageRef string) (messages.Message, error) {
	return b.post(ctx, userID, channelID, content, imageRef)
}

func (b *Broadcaster) post(ctx context.Context, senderID, channelID int64, content, imageRef string) (messages.Message, error) {
	lock := b.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	// Persistence failure aborts before any subscriber sees the message.
	msg, err := b.store.Create(ctx, channelID, senderID, content, imageRef)
	if err != nil {
		return messages.Message{}, err
	}

	frame, err := EncodeEvent(EventNewMessage, NewMessagePayload{Message: msg})
	if err != nil {
		// The message is durable; subscribers catch up via history.
		b.logger.Error("encode message event", slog.Int64("message_id", msg.ID), slog.Any("error", err))
		return msg, nil
	}
	b.fanOut(channelID, frame, nil)
	return msg, nil
}

// NotifySystem broadcasts an ephemeral presence notice to every live
// subscriber of the channel except the acting session. Nothing is persisted.
func (b *Broadcaster) NotifySystem(channelID int64, text string, exclude *Session) {
	frame, err := EncodeEvent(EventSystemNotification, SystemNotification{
		Content:   text,
		ChannelID: channelID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		b.logger.Error("encode system notification", slog.Int64("channel_id", channelID), slog.Any("error", err))
		return
	}
	b.fanOut(channelID, frame, exclude)
}

// fanOut delivers one frame to the channel's current subscriber snapshot.
// A failure to enqueue for one subscriber is logged and never aborts
// delivery to the others.
func (b *Broadcaster) fanOut(channelID int64, frame []byte, exclude *Session) {
	for _, sub := range b.registry.SubscribersOf(channelID) {
		if exclude != nil && sub.ID() == exclude.ID() {
			continue
		}
		if err := sub.Enqueue(frame); err != nil {
			switch {
			case errors.Is(err, ErrQueueFull):
				b.logger.Warn("subscriber queue full, frame dropped",
					slog.String("connection_id", sub.ID()),
					slog.Int64("channel_id", channelID))
			case errors.Is(err, ErrSessionClosed):
				b.logger.Debug("subscriber closed, frame dropped",
					slog.String("connection_id", sub.ID()),
					slog.Int64("channel_id", channelID))
			}
			continue
		}
	}
}

func (b *Broadcaster) channelLock(channelID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[channelID] = lock
	}
	return lock
}
