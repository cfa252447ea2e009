package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_send_message = "client.send-message"
	report_client_get_updates  = "client.get-updates"
)

const DefaultAPIBase = "https://api.telegram.org"

var ErrNotConfigured = errors.New("telegram: bot token is empty")

type Options struct {
	Token   string
	APIBase string
	Timeout time.Duration
}

// Client is a minimal Bot API client, it only knows sendMessage and getUpdates.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(options Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	if options.Token == "" {
		return nil, ErrNotConfigured
	}
	if options.APIBase == "" {
		options.APIBase = DefaultAPIBase
	}
	if options.Timeout <= 0 {
		options.Timeout = 15 * time.Second
	}

	tel = telemetry.NewScopedAPI("telegram", tel)

	httpClient := resty.New()
	httpClient.SetBaseURL(fmt.Sprintf("%s/bot%s", options.APIBase, options.Token))
	httpClient.SetTimeout(options.Timeout)

	// telegram allows about one message per second per chat
	rateLimiter := rate.NewLimiter(1, 3)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{http: httpClient, tel: tel}, nil
}

type apiResponse[T any] struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
	Result      T      `json:"result"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// SendMessage sends an HTML formatted message to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	var out apiResponse[Message]
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":                  chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": "true",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/sendMessage")
	if err != nil {
		c.tel.ReportBroken(report_client_send_message, fmt.Errorf("request: %w", err))
		return fmt.Errorf("telegram: send message: %w", err)
	}
	if res.IsError() || !out.Ok {
		err := fmt.Errorf("telegram: send message: %s %s", res.Status(), out.Description)
		c.tel.ReportBroken(report_client_send_message, err)
		return err
	}
	return nil
}

// GetUpdates long polls for updates after offset, waiting up to timeout on the server.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var out apiResponse[[]Update]
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":          strconv.FormatInt(offset, 10),
			"timeout":         strconv.Itoa(int(timeout.Seconds())),
			"allowed_updates": `["message"]`,
		}).
		SetResult(&out).
		SetError(&out).
		Get("/getUpdates")
	if err != nil {
		return nil, fmt.Errorf("telegram: get updates: %w", err)
	}
	if res.IsError() || !out.Ok {
		err := fmt.Errorf("telegram: get updates: %s %s", res.Status(), out.Description)
		c.tel.ReportBroken(report_client_get_updates, err)
		return nil, err
	}
	return out.Result, nil
}
