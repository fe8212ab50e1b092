package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Telegram posts one message per outage and threads every follow-up as a
// reply to it. The first message id is kept in the alert state.
type Telegram struct {
	Base
	client *tgbot.Bot
	chatID string
}

var _ Channel = (*Telegram)(nil)

func NewTelegram(base Base, botToken, chatID, apiBase string) (*Telegram, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.New("telegram chat_id is required")
	}
	options := []tgbot.Option{tgbot.WithSkipGetMe()}
	if apiBase != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(apiBase, "/")))
	}
	client, err := tgbot.New(botToken, options...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{Base: base, client: client, chatID: strings.TrimSpace(chatID)}, nil
}

func (t *Telegram) send(ctx context.Context, m Message, replyTo int, silent bool) (int, error) {
	req := &tgbot.SendMessageParams{
		ChatID:              normalizeChatID(t.chatID),
		Text:                m.HTML(),
		ParseMode:           tgmodels.ParseModeHTML,
		DisableNotification: silent,
	}
	if replyTo > 0 {
		req.ReplyParameters = &tgmodels.ReplyParameters{MessageID: replyTo}
	}
	sent, err := t.client.SendMessage(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("%s: telegram send %s: %w", t.Name(), m.Kind, err)
	}
	if sent == nil || sent.ID <= 0 {
		return 0, fmt.Errorf("%s: telegram send returned empty message id", t.Name())
	}
	return sent.ID, nil
}

// thread returns the message id of the outage thread in this chat, if any.
func (t *Telegram) thread(state *domain.AlertState) int {
	if state.State.Kind != domain.CorrelationChat || state.State.ChatID != t.chatID {
		return 0
	}
	return state.State.MessageID
}

func (t *Telegram) SendNewAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	id, err := t.send(ctx, t.Renderer().New(snapshots, state), 0, false)
	if err != nil {
		return err
	}
	state.State = domain.ChatCorrelation(t.chatID, id)
	return nil
}

func (t *Telegram) SendOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	replyTo := t.thread(state)
	id, err := t.send(ctx, t.Renderer().Ongoing(snapshots, state), replyTo, false)
	if err != nil {
		return err
	}
	if replyTo == 0 {
		state.State = domain.ChatCorrelation(t.chatID, id)
	}
	return nil
}

func (t *Telegram) SendResolvedAlert(ctx context.Context, state *domain.AlertState) error {
	_, err := t.send(ctx, t.Renderer().Resolved(state), t.thread(state), false)
	return err
}

func (t *Telegram) SendMutedAlert(ctx context.Context, state *domain.AlertState) error {
	_, err := t.send(ctx, t.Renderer().Muted(state), t.thread(state), true)
	return err
}

func (t *Telegram) PingAboutOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	_, err := t.send(ctx, t.Renderer().Ping(snapshots, state), t.thread(state), true)
	return err
}

// normalizeChatID converts numeric chat IDs to int64 and keeps channel
// usernames as strings.
func normalizeChatID(raw string) any {
	if numeric, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return numeric
	}
	return raw
}
