// ABOUTME: Matrix implementation of the bot.Channel port
// ABOUTME: Sends plain text, Markdown rendered to HTML, and CSV attachments

package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/attachment"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// sendTimeout bounds each outbound Matrix request.
const sendTimeout = 30 * time.Second

// matrixSender is the subset of *mautrix.Client the channel uses.
type matrixSender interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON interface{}, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	UploadBytes(ctx context.Context, data []byte, contentType string) (*mautrix.RespMediaUpload, error)
}

// matrixChannel delivers bot replies to Matrix rooms.
type matrixChannel struct {
	client       matrixSender
	encryptFiles bool
	logger       *slog.Logger
}

func newMatrixChannel(client matrixSender, encryptFiles bool, logger *slog.Logger) *matrixChannel {
	return &matrixChannel{
		client:       client,
		encryptFiles: encryptFiles,
		logger:       logger.With("component", "channel"),
	}
}

// SendText sends a plain text message.
func (c *matrixChannel) SendText(ctx context.Context, channelID, text string) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	return c.send(ctx, channelID, content)
}

// SendMarkdown sends markdown as the plain body and its HTML rendering as
// the formatted body.
func (c *matrixChannel) SendMarkdown(ctx context.Context, channelID, markdown string) error {
	content, err := markdownContent(markdown)
	if err != nil {
		c.logger.Warn("markdown rendering failed, sending plain text", "error", err)
		return c.SendText(ctx, channelID, markdown)
	}
	return c.send(ctx, channelID, content)
}

// SendFile uploads data and posts it as a file message. When encryption
// is on, the file is encrypted client-side before upload.
func (c *matrixChannel) SendFile(ctx context.Context, channelID, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	const mimeType = "text/csv"
	content := &event.MessageEventContent{
		MsgType:  event.MsgFile,
		Body:     name,
		FileName: name,
		Info: &event.FileInfo{
			MimeType: mimeType,
			Size:     len(data),
		},
	}

	payload := data
	uploadType := mimeType
	var file *attachment.EncryptedFile
	if c.encryptFiles {
		file = attachment.NewEncryptedFile()
		payload = bytes.Clone(data)
		file.EncryptInPlace(payload)
		uploadType = "application/octet-stream"
	}

	resp, err := c.client.UploadBytes(ctx, payload, uploadType)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}

	if file != nil {
		content.File = &event.EncryptedFileInfo{
			EncryptedFile: *file,
			URL:           resp.ContentURI.CUString(),
		}
	} else {
		content.URL = resp.ContentURI.CUString()
	}

	return c.sendWithin(ctx, channelID, content)
}

func (c *matrixChannel) send(ctx context.Context, channelID string, content *event.MessageEventContent) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return c.sendWithin(ctx, channelID, content)
}

func (c *matrixChannel) sendWithin(ctx context.Context, channelID string, content *event.MessageEventContent) error {
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(channelID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending to %s: %w", channelID, err)
	}
	return nil
}

// markdownContent renders markdown into a message with an HTML body.
func markdownContent(markdown string) (*event.MessageEventContent, error) {
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &html); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	return &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          markdown,
		Format:        event.FormatHTML,
		FormattedBody: html.String(),
	}, nil
}
