package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/control"
	"github.com/flxmf365/hospital-booking-bot/internal/monitor"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
	"github.com/flxmf365/hospital-booking-bot/internal/sinks"
	"github.com/flxmf365/hospital-booking-bot/internal/telegram"
	"github.com/flxmf365/hospital-booking-bot/lib/configutil"

	"github.com/robfig/cron/v3"
)

const (
	BrowserChrome = "chrome"
	BrowserStatic = "static"
)

type TargetConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// URL may contain {date}, replaced by the current date in the configured time zone.
	URL     string   `json:"url"`
	Aliases []string `json:"aliases"`
}

type PollConfig struct {
	IntervalSeconds      int `json:"interval_seconds"`
	RetrySeconds         int `json:"retry_seconds"`
	MaxConsecutiveErrors int `json:"max_consecutive_errors"`
	BackoffStepSeconds   int `json:"backoff_step_seconds"`
	BackoffCapSeconds    int `json:"backoff_cap_seconds"`
}

type HeuristicConfig struct {
	MarkerClass string   `json:"marker_class"`
	DenyClasses []string `json:"deny_classes"`
	// ActiveColors are css colors (rgb(...) or #hex) of a bookable label.
	ActiveColors   []string `json:"active_colors"`
	ColorTolerance int      `json:"color_tolerance"`
	LoginMarkers   []string `json:"login_markers"`
	BookedPhrases  []string `json:"booked_phrases"`
}

type BrowserConfig struct {
	// Mode is either "chrome" or "static".
	Mode              string  `json:"mode"`
	Headless          *bool   `json:"headless"`
	ExecPath          string  `json:"exec_path"`
	UserAgent         string  `json:"user_agent"`
	SlotSelector      string  `json:"slot_selector"`
	LabelSelector     string  `json:"label_selector"`
	WaitSeconds       int     `json:"wait_seconds"`
	RenderSeconds     int     `json:"render_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	BypassCloudflare  *bool   `json:"bypass_cloudflare"`
}

type TelegramConfig struct {
	Token          string `json:"token"`
	ChatID         string `json:"chat_id"`
	APIBase        string `json:"api_base"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != ""
}

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

func (c EmailConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

type DesktopConfig struct {
	Enabled bool `json:"enabled"`
	// Command overrides the platform default, {title} and {body} are substituted.
	Command []string `json:"command"`
}

type SinksConfig struct {
	Telegram       TelegramConfig `json:"telegram"`
	Email          EmailConfig    `json:"email"`
	Desktop        DesktopConfig  `json:"desktop"`
	Log            *bool          `json:"log"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

type ControlConfig struct {
	// Telegram enables chat commands, it needs sinks.telegram to be configured.
	Telegram          bool `json:"telegram"`
	LongPollSeconds   int  `json:"long_poll_seconds"`
	CheckCacheSeconds int  `json:"check_cache_seconds"`
}

type StoreConfig struct {
	// Path is a sqlite file or a libsql:// url, empty disables history.
	Path string `json:"path"`
}

type Config struct {
	TimeZone  string          `json:"timezone"`
	Place     string          `json:"place"`
	Targets   []TargetConfig  `json:"targets"`
	Poll      PollConfig      `json:"poll"`
	Heuristic HeuristicConfig `json:"heuristic"`
	Browser   BrowserConfig   `json:"browser"`
	Sinks     SinksConfig     `json:"sinks"`
	Control   ControlConfig   `json:"control"`
	Store     StoreConfig     `json:"store"`

	HealthCheckCron string `json:"health_check_cron"`
	// SummaryCron sends a status summary through the sinks, empty disables it.
	SummaryCron string `json:"summary_cron"`

	AutoStart        *bool `json:"auto_start"`
	NotifyOnStart    *bool `json:"notify_on_start"`
	NotifyOnShutdown *bool `json:"notify_on_shutdown"`
}

func boolPtr(b bool) *bool {
	return &b
}

func enabled(b *bool) bool {
	return b != nil && *b
}

func Defaults() Config {
	heuristic := prober.DefaultHeuristic()
	colors := make([]string, len(heuristic.ActiveColors))
	for i, c := range heuristic.ActiveColors {
		colors[i] = c.String()
	}
	options := prober.DefaultOptions()
	chrome := prober.DefaultChromeOptions()
	static := prober.DefaultStaticOptions()
	policy := monitor.DefaultPolicy()

	return Config{
		TimeZone: "Asia/Seoul",
		Place:    "마일스톤소아청소년과의원",
		Targets: []TargetConfig{
			{
				ID:      "consultation",
				Name:    "심층상담",
				URL:     "https://m.booking.naver.com/booking/13/bizes/635057/items/4867274?lang=ko&service-target=map-pc&startDate={date}&theme=place",
				Aliases: []string{"심층"},
			},
			{
				ID:      "infant-checkup",
				Name:    "영유아검진",
				URL:     "https://m.booking.naver.com/booking/13/bizes/635057/items/4242694?lang=ko&service-target=map-pc&startDate={date}&theme=place",
				Aliases: []string{"영유아"},
			},
		},
		Poll: PollConfig{
			IntervalSeconds:      int(policy.Interval.Seconds()),
			RetrySeconds:         int(policy.RetryDelay.Seconds()),
			MaxConsecutiveErrors: policy.MaxConsecutiveErrors,
			BackoffStepSeconds:   int(policy.BackoffStep.Seconds()),
			BackoffCapSeconds:    int(policy.BackoffCap.Seconds()),
		},
		Heuristic: HeuristicConfig{
			MarkerClass:   heuristic.MarkerClass,
			DenyClasses:   heuristic.DenyClasses,
			ActiveColors:  colors,
			LoginMarkers:  options.LoginMarkers,
			BookedPhrases: options.BookedPhrases,
		},
		Browser: BrowserConfig{
			Mode:              BrowserChrome,
			Headless:          boolPtr(chrome.Headless),
			UserAgent:         chrome.UserAgent,
			SlotSelector:      chrome.SlotSelector,
			LabelSelector:     chrome.LabelSelector,
			WaitSeconds:       int(chrome.WaitTimeout.Seconds()),
			RenderSeconds:     int(chrome.RenderTimeout.Seconds()),
			RequestsPerSecond: static.RequestsPerSecond,
			BypassCloudflare:  boolPtr(static.BypassCloudflare),
		},
		Sinks: SinksConfig{
			Telegram: TelegramConfig{
				APIBase:        telegram.DefaultAPIBase,
				TimeoutSeconds: 15,
			},
			Email:          EmailConfig{Port: 587},
			Log:            boolPtr(true),
			TimeoutSeconds: int(notifier.DefaultFanoutTimeout.Seconds()),
		},
		Control: ControlConfig{
			LongPollSeconds:   int(control.DefaultPollerOptions().LongPoll.Seconds()),
			CheckCacheSeconds: 15,
		},
		Store:            StoreConfig{Path: ".dev/history.db"},
		HealthCheckCron:  "@every 1m",
		AutoStart:        boolPtr(true),
		NotifyOnStart:    boolPtr(true),
		NotifyOnShutdown: boolPtr(true),
	}
}

// Read loads a json5 config file (plus its .local override) and fills whatever
// it leaves out from Defaults.
func Read(path string) (Config, error) {
	config, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, err
	}
	return configutil.WithDefaults(config, Defaults())
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

func (c Config) ProberTargets() []prober.Target {
	out := make([]prober.Target, len(c.Targets))
	for i, t := range c.Targets {
		out[i] = prober.Target{
			ID:          t.ID,
			Name:        t.Name,
			URLTemplate: t.URL,
			Aliases:     t.Aliases,
		}
	}
	return out
}

func (c Config) Policy() monitor.Policy {
	return monitor.Policy{
		Interval:             seconds(c.Poll.IntervalSeconds),
		RetryDelay:           seconds(c.Poll.RetrySeconds),
		MaxConsecutiveErrors: c.Poll.MaxConsecutiveErrors,
		BackoffStep:          seconds(c.Poll.BackoffStepSeconds),
		BackoffCap:           seconds(c.Poll.BackoffCapSeconds),
	}
}

func (c Config) BuildHeuristic() (prober.Heuristic, error) {
	colors := make([]prober.RGB, len(c.Heuristic.ActiveColors))
	for i, raw := range c.Heuristic.ActiveColors {
		color, ok := prober.ParseColor(raw)
		if !ok {
			return prober.Heuristic{}, fmt.Errorf("heuristic.active_colors[%d]: cannot parse %q", i, raw)
		}
		colors[i] = color
	}
	return prober.Heuristic{
		MarkerClass:    c.Heuristic.MarkerClass,
		DenyClasses:    c.Heuristic.DenyClasses,
		ActiveColors:   colors,
		ColorTolerance: c.Heuristic.ColorTolerance,
	}, nil
}

func (c Config) ProberOptions() (prober.Options, error) {
	heuristic, err := c.BuildHeuristic()
	if err != nil {
		return prober.Options{}, err
	}
	return prober.Options{
		Classifier:    heuristic,
		LoginMarkers:  c.Heuristic.LoginMarkers,
		BookedPhrases: c.Heuristic.BookedPhrases,
	}, nil
}

func (c Config) ChromeOptions() prober.ChromeOptions {
	return prober.ChromeOptions{
		ExecPath:      c.Browser.ExecPath,
		Headless:      enabled(c.Browser.Headless),
		UserAgent:     c.Browser.UserAgent,
		SlotSelector:  c.Browser.SlotSelector,
		LabelSelector: c.Browser.LabelSelector,
		WaitTimeout:   seconds(c.Browser.WaitSeconds),
		RenderTimeout: seconds(c.Browser.RenderSeconds),
	}
}

func (c Config) StaticOptions() prober.StaticOptions {
	return prober.StaticOptions{
		UserAgent:         c.Browser.UserAgent,
		SlotSelector:      c.Browser.SlotSelector,
		LabelSelector:     c.Browser.LabelSelector,
		Timeout:           seconds(c.Browser.RenderSeconds),
		RequestsPerSecond: c.Browser.RequestsPerSecond,
		BypassCloudflare:  enabled(c.Browser.BypassCloudflare),
	}
}

func (c Config) TelegramOptions() telegram.Options {
	return telegram.Options{
		Token:   c.Sinks.Telegram.Token,
		APIBase: c.Sinks.Telegram.APIBase,
		Timeout: seconds(c.Sinks.Telegram.TimeoutSeconds),
	}
}

func (c Config) SmtpOptions() sinks.SmtpOptions {
	return sinks.SmtpOptions{
		Server:       c.Sinks.Email.Server,
		Port:         c.Sinks.Email.Port,
		EmailAddress: c.Sinks.Email.EmailAddress,
		Password:     c.Sinks.Email.Password,
		To:           c.Sinks.Email.To,
	}
}

func (c Config) FanoutTimeout() time.Duration {
	return seconds(c.Sinks.TimeoutSeconds)
}

func (c Config) CheckCacheTTL() time.Duration {
	return seconds(c.Control.CheckCacheSeconds)
}

func (c Config) PollerOptions() control.PollerOptions {
	options := control.DefaultPollerOptions()
	options.ChatID = c.Sinks.Telegram.ChatID
	options.LongPoll = seconds(c.Control.LongPollSeconds)
	return options
}

func (c Config) LogSink() bool {
	return enabled(c.Sinks.Log)
}

func (c Config) ShouldAutoStart() bool {
	return enabled(c.AutoStart)
}

func (c Config) ShouldNotifyOnStart() bool {
	return enabled(c.NotifyOnStart)
}

func (c Config) ShouldNotifyOnShutdown() bool {
	return enabled(c.NotifyOnShutdown)
}

// Validate reports every problem with the config at once.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("targets: at least one target is required"))
	}
	seen := map[string]bool{}
	for i, t := range c.Targets {
		switch {
		case t.ID == "":
			errs = append(errs, fmt.Errorf("targets[%d]: id is empty", i))
		case seen[t.ID]:
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate id %q", i, t.ID))
		case strings.ContainsAny(t.ID, " \t"):
			errs = append(errs, fmt.Errorf("targets[%d]: id %q contains whitespace", i, t.ID))
		}
		seen[t.ID] = true
		if !strings.HasPrefix(t.URL, "http://") && !strings.HasPrefix(t.URL, "https://") {
			errs = append(errs, fmt.Errorf("targets[%d]: url %q is not http(s)", i, t.URL))
		}
	}

	if c.Poll.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("poll.interval_seconds must be positive"))
	}
	if c.Poll.RetrySeconds <= 0 {
		errs = append(errs, errors.New("poll.retry_seconds must be positive"))
	}
	if c.Poll.MaxConsecutiveErrors <= 0 {
		errs = append(errs, errors.New("poll.max_consecutive_errors must be positive"))
	}
	if c.Poll.BackoffCapSeconds < c.Poll.BackoffStepSeconds {
		errs = append(errs, errors.New("poll.backoff_cap_seconds is smaller than poll.backoff_step_seconds"))
	}

	if c.Heuristic.MarkerClass == "" {
		errs = append(errs, errors.New("heuristic.marker_class is empty"))
	}
	if _, err := c.BuildHeuristic(); err != nil {
		errs = append(errs, err)
	}

	if c.Browser.Mode != BrowserChrome && c.Browser.Mode != BrowserStatic {
		errs = append(errs, fmt.Errorf("browser.mode: %q is neither %q nor %q", c.Browser.Mode, BrowserChrome, BrowserStatic))
	}
	if c.Browser.SlotSelector == "" {
		errs = append(errs, errors.New("browser.slot_selector is empty"))
	}

	telegramConfig := c.Sinks.Telegram
	if (telegramConfig.Token == "") != (telegramConfig.ChatID == "") {
		errs = append(errs, errors.New("sinks.telegram: token and chat_id must be set together"))
	}
	if c.Control.Telegram && !telegramConfig.Enabled() {
		errs = append(errs, errors.New("control.telegram needs sinks.telegram.token and sinks.telegram.chat_id"))
	}
	if len(c.Sinks.Email.To) > 0 && c.Sinks.Email.Server == "" {
		errs = append(errs, errors.New("sinks.email.server is empty"))
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.HealthCheckCron); err != nil {
		errs = append(errs, fmt.Errorf("health_check_cron: %w", err))
	}
	if c.SummaryCron != "" {
		if _, err := parser.Parse(c.SummaryCron); err != nil {
			errs = append(errs, fmt.Errorf("summary_cron: %w", err))
		}
	}

	return errors.Join(errs...)
}
