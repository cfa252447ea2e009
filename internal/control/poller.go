package control

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/chrono"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/internal/telegram"
)

const (
	report_poller_get_updates = "telegram_poller.get-updates"
	report_poller_reply       = "telegram_poller.reply"
	report_poller_rejected    = "telegram_poller.rejected-chat"
)

// UpdateSource is the subset of the telegram client the poller needs.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text string) error
}

type PollerOptions struct {
	// ChatID is the only chat commands are accepted from.
	ChatID       string
	LongPoll     time.Duration
	RetryDelay   time.Duration
	ReplyTimeout time.Duration
}

func DefaultPollerOptions() PollerOptions {
	return PollerOptions{
		LongPoll:     10 * time.Second,
		RetryDelay:   5 * time.Second,
		ReplyTimeout: 2 * time.Minute,
	}
}

// TelegramPoller long polls the bot api for chat commands and answers them.
type TelegramPoller struct {
	source     UpdateSource
	dispatcher Dispatcher
	options    PollerOptions
	time       chrono.TimeAPI
	tel        telemetry.API

	offset int64
}

func NewTelegramPoller(
	source UpdateSource,
	dispatcher Dispatcher,
	options PollerOptions,
	time chrono.TimeAPI,
	tel telemetry.API,
) *TelegramPoller {
	assert.NotNil(source)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.NotEmptyStr(options.ChatID)

	defaults := DefaultPollerOptions()
	if options.LongPoll <= 0 {
		options.LongPoll = defaults.LongPoll
	}
	if options.RetryDelay <= 0 {
		options.RetryDelay = defaults.RetryDelay
	}
	if options.ReplyTimeout <= 0 {
		options.ReplyTimeout = defaults.ReplyTimeout
	}

	return &TelegramPoller{
		source:     source,
		dispatcher: dispatcher,
		options:    options,
		time:       time,
		tel:        telemetry.NewScopedAPI("control", tel),
	}
}

// Run polls until ctx is cancelled, it always returns ctx.Err().
func (p *TelegramPoller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.PollOnce(ctx)
		if err != nil && ctx.Err() == nil {
			p.tel.ReportWarning(report_poller_get_updates, err)
			if err := p.time.Sleep(ctx, p.options.RetryDelay); err != nil {
				return err
			}
		}
	}
}

// PollOnce fetches one batch of updates and answers every accepted message in it.
func (p *TelegramPoller) PollOnce(ctx context.Context) error {
	updates, err := p.source.GetUpdates(ctx, p.offset, p.options.LongPoll)
	if err != nil {
		return err
	}

	for _, update := range updates {
		if update.UpdateID >= p.offset {
			p.offset = update.UpdateID + 1
		}
		if update.Message == nil || update.Message.Text == "" {
			continue
		}

		chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
		if chatID != p.options.ChatID {
			p.tel.ReportWarning(report_poller_rejected, chatID)
			continue
		}
		p.handle(ctx, update.Message.Text)
	}
	return nil
}

func (p *TelegramPoller) handle(ctx context.Context, text string) {
	p.tel.ReportDebug("command received", text)

	cmd := Parse(text)
	if cmd.Verb == VerbCheck {
		p.reply(ctx, "🔍 예약 상태 확인 중...")
	}

	ctx, cancel := context.WithTimeout(ctx, p.options.ReplyTimeout)
	defer cancel()
	p.reply(ctx, p.dispatcher.Execute(ctx, cmd))
}

func (p *TelegramPoller) reply(ctx context.Context, text string) {
	err := p.source.SendMessage(context.WithoutCancel(ctx), p.options.ChatID, text)
	if err != nil {
		p.tel.ReportBroken(report_poller_reply, fmt.Errorf("send reply: %w", err), html.UnescapeString(text))
	}
}
