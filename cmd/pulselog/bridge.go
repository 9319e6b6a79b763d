// ABOUTME: Matrix bridge core for pulselog
// ABOUTME: Syncs with the homeserver and feeds accepted messages to the bot dispatcher

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/pulselog/internal/bot"
	"github.com/2389/pulselog/internal/config"
)

// networkTimeout is the timeout for Matrix API calls outside message sends.
const networkTimeout = 10 * time.Second

// HandlerFunc processes one accepted message.
type HandlerFunc func(ctx context.Context, msg bot.Message) error

// Bridge connects a Matrix account to the bot dispatcher.
type Bridge struct {
	matrix *mautrix.Client
	handle HandlerFunc
	filter *filter
	logger *slog.Logger
}

// filter decides which Matrix events reach the bot.
type filter struct {
	self         id.UserID
	allowedUsers map[string]bool // empty = everyone
	allowedRooms map[string]bool // empty = every joined room
	since        time.Time       // events older than this are history replayed by the first sync
}

func newFilter(self id.UserID, cfg config.MatrixConfig, since time.Time) *filter {
	return &filter{
		self:         self,
		allowedUsers: toSet(cfg.AllowedUsers),
		allowedRooms: toSet(cfg.AllowedRooms),
		since:        since,
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func (f *filter) userAllowed(userID id.UserID) bool {
	return len(f.allowedUsers) == 0 || f.allowedUsers[userID.String()]
}

func (f *filter) roomAllowed(roomID id.RoomID) bool {
	return len(f.allowedRooms) == 0 || f.allowedRooms[roomID.String()]
}

// accept converts evt to a bot message if it should be handled.
func (f *filter) accept(evt *event.Event) (bot.Message, bool) {
	if evt.Sender == f.self {
		return bot.Message{}, false
	}
	if time.UnixMilli(evt.Timestamp).Before(f.since) {
		return bot.Message{}, false
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return bot.Message{}, false
	}
	// Edits repeat the text as "* new text"; only original messages count.
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return bot.Message{}, false
	}
	if !f.userAllowed(evt.Sender) || !f.roomAllowed(evt.RoomID) {
		return bot.Message{}, false
	}

	return bot.Message{
		EventID:   evt.ID.String(),
		UserID:    evt.Sender.String(),
		ChannelID: evt.RoomID.String(),
		Text:      content.Body,
	}, true
}

// NewBridge creates a bridge around an authenticated client.
func NewBridge(client *mautrix.Client, cfg config.MatrixConfig, handle HandlerFunc, logger *slog.Logger) *Bridge {
	return &Bridge{
		matrix: client,
		handle: handle,
		filter: newFilter(client.UserID, cfg, time.Now()),
		logger: logger.With("component", "bridge"),
	}
}

// Run syncs until ctx is cancelled. Events are handled on the sync
// goroutine, one at a time, in delivery order.
func (b *Bridge) Run(ctx context.Context) error {
	syncer, ok := b.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.matrix.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)

	b.logger.Info("connecting to matrix homeserver")

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.matrix.SyncWithContext(ctx)
	}()

	b.logger.Info("matrix bridge running")

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bridge")
		b.matrix.StopSync()
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	msg, ok := b.filter.accept(evt)
	if !ok {
		return
	}

	b.logger.Info("received message",
		"room", msg.ChannelID,
		"sender", msg.UserID,
		"event_id", msg.EventID,
	)

	if err := b.handle(ctx, msg); err != nil {
		b.logger.Error("handling message failed", "room", msg.ChannelID, "sender", msg.UserID, "error", err)
	}
}

// handleMemberEvent joins rooms the bot is invited to by an allowed user.
func (b *Bridge) handleMemberEvent(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok || content.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != b.matrix.UserID.String() {
		return
	}
	if !b.filter.userAllowed(evt.Sender) || !b.filter.roomAllowed(evt.RoomID) {
		b.logger.Debug("ignoring invite", "room", evt.RoomID.String(), "sender", evt.Sender.String())
		return
	}

	joinCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := b.matrix.JoinRoomByID(joinCtx, evt.RoomID); err != nil {
		b.logger.Error("failed to join room", "room", evt.RoomID.String(), "error", err)
		return
	}
	b.logger.Info("joined room", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
}
