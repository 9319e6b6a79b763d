// ABOUTME: Dispatcher routing chat messages to capture, history and export
// ABOUTME: Deduplicates redelivered events and turns results into replies

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/pulselog/internal/capture"
	"github.com/2389/pulselog/internal/dedupe"
	"github.com/2389/pulselog/internal/report"
	"github.com/2389/pulselog/internal/store"
)

// Channel is the outbound side of the conversational transport.
type Channel interface {
	SendText(ctx context.Context, channelID, text string) error
	// SendMarkdown sends text that uses Markdown formatting; transports
	// without rich text may send it verbatim.
	SendMarkdown(ctx context.Context, channelID, markdown string) error
	SendFile(ctx context.Context, channelID, name string, data []byte) error
}

// Message is one inbound text event.
type Message struct {
	// EventID is the transport's unique id, used for deduplication. May be empty.
	EventID string

	// UserID identifies the sender; all data is scoped to it.
	UserID string

	// ChannelID is where replies go (a Matrix room).
	ChannelID string

	Text string
}

// Dispatcher handles inbound messages one at a time per user.
type Dispatcher struct {
	machine *capture.Machine
	reports *report.Service
	channel Channel
	seen    *dedupe.Cache
	msgs    Catalog
	logger  *slog.Logger
}

// New creates a Dispatcher. seen may be nil to disable deduplication.
func New(machine *capture.Machine, reports *report.Service, channel Channel, seen *dedupe.Cache, msgs Catalog, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		machine: machine,
		reports: reports,
		channel: channel,
		seen:    seen,
		msgs:    msgs,
		logger:  logger.With("component", "bot"),
	}
}

// Handle processes one message. A returned error means a reply could not
// be delivered or a storage fault occurred; the user has been told
// whenever the channel allowed it. A failed event is forgotten by the
// dedupe cache so a redelivery is handled again.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) error {
	var key string
	if msg.EventID != "" && d.seen != nil {
		key = "event:" + msg.EventID
		if d.seen.Seen(key) {
			d.logger.Debug("duplicate event ignored", "event_id", msg.EventID)
			return nil
		}
	}

	err := d.route(ctx, msg)
	if err != nil && key != "" {
		d.seen.Forget(key)
	}
	return err
}

func (d *Dispatcher) route(ctx context.Context, msg Message) error {
	cmd, name := ParseCommand(msg.Text)
	d.logger.Debug("handling message", "user_id", msg.UserID, "channel_id", msg.ChannelID, "command", name)

	switch cmd {
	case CmdHelp:
		return d.reply(ctx, msg, d.msgs.Help)
	case CmdNewMeasurement:
		return d.startCapture(ctx, msg)
	case CmdCancel:
		return d.cancelCapture(ctx, msg)
	case CmdShowMeasurements:
		return d.showHistory(ctx, msg)
	case CmdExport:
		return d.export(ctx, msg)
	case CmdUnknown:
		return d.reply(ctx, msg, fmt.Sprintf(d.msgs.UnknownCommand, name))
	}

	if !d.machine.Active(msg.UserID) {
		return d.reply(ctx, msg, d.msgs.NoSession)
	}
	return d.captureInput(ctx, msg)
}

func (d *Dispatcher) startCapture(ctx context.Context, msg Message) error {
	res := d.machine.Start(msg.UserID)

	prompt := d.msgs.Prompt(res.Prompt)
	if res.Restarted {
		prompt = d.msgs.Restarted + "\n" + prompt
	}
	return d.reply(ctx, msg, prompt)
}

func (d *Dispatcher) cancelCapture(ctx context.Context, msg Message) error {
	if _, ok := d.machine.Cancel(msg.UserID); !ok {
		return d.reply(ctx, msg, d.msgs.NothingToCancel)
	}
	return d.reply(ctx, msg, d.msgs.Cancelled)
}

func (d *Dispatcher) captureInput(ctx context.Context, msg Message) error {
	res, err := d.machine.Input(ctx, msg.UserID, msg.Text)
	if errors.Is(err, capture.ErrNoSession) {
		// Expired or cancelled between Active and Input.
		return d.reply(ctx, msg, d.msgs.NoSession)
	}

	var sErr *store.StorageError
	if errors.As(err, &sErr) {
		replyErr := d.reply(ctx, msg, d.msgs.SaveFailed)
		return errors.Join(err, replyErr)
	}
	if err != nil {
		return err
	}

	switch {
	case res.Rejected != nil:
		return d.reply(ctx, msg, d.msgs.Rejection(res.Rejected.Field))
	case res.Record != nil:
		r := res.Record
		return d.reply(ctx, msg, d.msgs.Confirmation(r.Systolic, r.Diastolic, r.Pulse))
	default:
		return d.reply(ctx, msg, d.msgs.Prompt(res.Prompt))
	}
}

func (d *Dispatcher) showHistory(ctx context.Context, msg Message) error {
	table, ok, err := d.reports.Recent(ctx, msg.UserID)
	if err != nil {
		d.logger.Error("loading history failed", "user_id", msg.UserID, "error", err)
		return errors.Join(err, d.reply(ctx, msg, d.msgs.HistoryFailed))
	}
	if !ok {
		return d.reply(ctx, msg, d.msgs.NoData)
	}

	if err := d.channel.SendMarkdown(ctx, msg.ChannelID, codeBlock(table)); err != nil {
		return fmt.Errorf("sending history: %w", err)
	}
	return nil
}

func (d *Dispatcher) export(ctx context.Context, msg Message) error {
	artifact, err := d.reports.Export(ctx, msg.UserID)
	if err != nil {
		d.logger.Error("export failed", "user_id", msg.UserID, "error", err)
		return errors.Join(err, d.reply(ctx, msg, d.msgs.ExportFailed))
	}
	if artifact == nil {
		return d.reply(ctx, msg, d.msgs.NoData)
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			d.logger.Warn("removing export artifact failed", "path", artifact.Path, "error", err)
		}
	}()

	data, err := artifact.Bytes()
	if err != nil {
		return errors.Join(fmt.Errorf("reading export artifact: %w", err), d.reply(ctx, msg, d.msgs.ExportFailed))
	}

	if err := d.channel.SendFile(ctx, msg.ChannelID, artifact.Name, data); err != nil {
		return fmt.Errorf("sending export: %w", err)
	}
	d.logger.Info("export delivered", "user_id", msg.UserID, "rows", artifact.Rows)
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, msg Message, text string) error {
	if err := d.channel.SendText(ctx, msg.ChannelID, text); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}

// codeBlock fences text so it renders monospaced.
func codeBlock(text string) string {
	return "```\n" + strings.TrimRight(text, "\n") + "\n```"
}
