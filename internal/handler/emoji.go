package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack/slackevents"

	"github.com/k2tzumi/new-emoji-webhook/internal/format"
	"github.com/k2tzumi/new-emoji-webhook/internal/model"
)

const emojiSubtypeAdd = "add"

// EmojiChangedType is the event type EmojiHandler is registered for.
const EmojiChangedType = string(slackevents.EmojiChanged)

// EmojiHandler announces newly added custom emoji. Removals and renames
// are acknowledged without a notification.
type EmojiHandler struct {
	template string
	notifier Notifier
	logger   *slog.Logger
}

func NewEmojiHandler(template string, notifier Notifier, logger *slog.Logger) *EmojiHandler {
	if template == "" {
		template = format.DefaultTemplate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmojiHandler{template: template, notifier: notifier, logger: logger}
}

func (h *EmojiHandler) Handle(ctx context.Context, payload model.EventPayload) (any, error) {
	ev := slackevents.EmojiChangedEvent{
		Type:    payload.Type,
		Subtype: payload.Subtype,
		Name:    payload.Name,
		Value:   payload.Value,
	}
	if len(payload.Raw) > 0 {
		if err := json.Unmarshal(payload.Raw, &ev); err != nil {
			return nil, fmt.Errorf("handler: decode emoji_changed: %w", err)
		}
	}

	if ev.Subtype != emojiSubtypeAdd {
		h.logger.Debug("ignoring emoji change", "subtype", ev.Subtype)
		return map[string]any{"ignore": payload}, nil
	}

	message := format.EmojiAdded(ev.Name, ev.Value, h.template)
	h.logger.Info("emoji added", "name", ev.Name)

	receipt, err := h.notifier.Notify(ctx, model.NotificationMessage{Text: message})
	if err != nil {
		return nil, err
	}
	if receipt.Queued {
		return map[string]any{"queued": message, "task_id": receipt.TaskID}, nil
	}
	if !receipt.Delivered {
		h.logger.Warn("incoming webhook did not confirm delivery", "name", ev.Name)
		return map[string]any{"posted": message, "delivered": false}, nil
	}
	return map[string]any{"posted": message}, nil
}
