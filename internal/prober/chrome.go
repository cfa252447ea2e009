package prober

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"

	"github.com/chromedp/chromedp"
)

const (
	report_chrome_accessor_render   = "chrome_accessor.render"
	report_chrome_accessor_relaunch = "chrome_accessor.relaunch"
)

type ChromeOptions struct {
	// ExecPath overrides the chrome binary, empty means chromedp's lookup.
	ExecPath  string
	Headless  bool
	UserAgent string
	// SlotSelector selects every calendar cell, the heuristic decides which are open.
	SlotSelector string
	// LabelSelector selects the label inside a cell, its computed color is what gets classified.
	LabelSelector string
	// WaitTimeout bounds how long to wait for SlotSelector to become visible.
	WaitTimeout time.Duration
	// RenderTimeout bounds a whole render.
	RenderTimeout time.Duration
}

func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:      true,
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		SlotSelector:  "button.calendar_date",
		LabelSelector: "span.num",
		WaitTimeout:   20 * time.Second,
		RenderTimeout: 60 * time.Second,
	}
}

// ChromeAccessor renders pages in a headless chrome. One browser process is shared,
// every Render opens and closes its own tab. When a tab cannot be opened the browser
// is assumed dead and launched again.
type ChromeAccessor struct {
	options ChromeOptions
	tel     telemetry.API
	launch  func() (chromeSession, error)
	openTab func(browser context.Context) (context.Context, context.CancelFunc, error)

	mu      sync.Mutex
	session chromeSession
	closed  bool
}

type chromeSession struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation int
}

var errAccessorClosed = errors.New("chrome accessor is closed")

// NewChromeAccessor launches the browser, Close must be called to release it.
func NewChromeAccessor(ctx context.Context, options ChromeOptions, tel telemetry.API) (*ChromeAccessor, error) {
	assert.NotEmptyStr(options.SlotSelector)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", options.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
	)
	if options.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(options.UserAgent))
	}
	if options.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(options.ExecPath))
	}

	base := context.WithoutCancel(ctx)
	launch := func() (chromeSession, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(base, opts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		cancel := func() {
			cancelBrowser()
			cancelAlloc()
		}
		// the first Run on the browser context starts the process
		if err := chromedp.Run(browserCtx); err != nil {
			cancel()
			return chromeSession{}, fmt.Errorf("launch chrome: %w", err)
		}
		return chromeSession{ctx: browserCtx, cancel: cancel}, nil
	}
	return newChromeAccessor(options, tel, launch, openChromeTab)
}

func newChromeAccessor(
	options ChromeOptions,
	tel telemetry.API,
	launch func() (chromeSession, error),
	openTab func(context.Context) (context.Context, context.CancelFunc, error),
) (*ChromeAccessor, error) {
	assert.NotNil(tel)

	session, err := launch()
	if err != nil {
		return nil, err
	}
	return &ChromeAccessor{
		options: options,
		tel:     telemetry.NewScopedAPI("prober", tel),
		launch:  launch,
		openTab: openTab,
		session: session,
	}, nil
}

func openChromeTab(browser context.Context) (context.Context, context.CancelFunc, error) {
	tab, cancel := chromedp.NewContext(browser)
	if err := chromedp.Run(tab); err != nil {
		cancel()
		return nil, nil, err
	}
	return tab, cancel, nil
}

// relaunch replaces the session stale with a fresh browser, unless another
// caller already replaced it.
func (c *ChromeAccessor) relaunch(stale chromeSession) (chromeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return chromeSession{}, errAccessorClosed
	}
	if c.session.generation != stale.generation {
		return c.session, nil
	}

	c.session.cancel()
	session, err := c.launch()
	if err != nil {
		return chromeSession{}, err
	}
	session.generation = stale.generation + 1
	c.session = session
	return session, nil
}

func (c *ChromeAccessor) tab() (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, errAccessorClosed
	}
	session := c.session
	c.mu.Unlock()

	tab, cancel, err := c.openTab(session.ctx)
	if err == nil {
		return tab, cancel, nil
	}

	c.tel.ReportWarning(report_chrome_accessor_relaunch, err)
	session, launchErr := c.relaunch(session)
	if launchErr != nil {
		c.tel.ReportBroken(report_chrome_accessor_relaunch, launchErr)
		return nil, nil, fmt.Errorf("open tab: %w", errors.Join(err, launchErr))
	}
	tab, cancel, err = c.openTab(session.ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open tab after relaunch: %w", err)
	}
	return tab, cancel, nil
}

type chromeSlot struct {
	Label     string `json:"label"`
	ClassName string `json:"className"`
	Disabled  bool   `json:"disabled"`
	Color     string `json:"color"`
}

const slotScript = `((slotSelector, labelSelector) => {
	const out = [];
	for (const el of document.querySelectorAll(slotSelector)) {
		const label = (labelSelector && el.querySelector(labelSelector)) || el;
		out.push({
			label: (label.innerText || label.textContent || "").trim(),
			className: el.getAttribute("class") || "",
			disabled: !!el.disabled || el.getAttribute("aria-disabled") === "true",
			color: window.getComputedStyle(label).color || "",
		});
	}
	return out;
})(%q, %q)`

func (c *ChromeAccessor) Render(ctx context.Context, url string) (Page, error) {
	tab, cancelTab, err := c.tab()
	if err != nil {
		return Page{}, err
	}
	defer cancelTab()

	tabCtx, cancel := context.WithTimeout(tab, c.options.RenderTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err = chromedp.Run(tabCtx, chromedp.Navigate(url))
	if err != nil {
		c.tel.ReportBroken(report_chrome_accessor_render, fmt.Errorf("navigate: %w", err), url)
		return Page{}, fmt.Errorf("navigate: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, c.options.WaitTimeout)
	waitErr := chromedp.Run(waitCtx, chromedp.WaitVisible(c.options.SlotSelector, chromedp.ByQuery))
	cancelWait()
	if waitErr != nil && tabCtx.Err() != nil {
		return Page{}, fmt.Errorf("wait for slots: %w", errors.Join(waitErr, tabCtx.Err()))
	}

	page := Page{MarkersFound: waitErr == nil}
	actions := []chromedp.Action{
		chromedp.Location(&page.FinalURL),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &page.Text),
	}
	var raw []chromeSlot
	if page.MarkersFound {
		actions = append(actions, chromedp.Evaluate(
			fmt.Sprintf(slotScript, c.options.SlotSelector, c.options.LabelSelector),
			&raw,
		))
	}
	err = chromedp.Run(tabCtx, actions...)
	if err != nil {
		c.tel.ReportBroken(report_chrome_accessor_render, fmt.Errorf("inspect: %w", err), url)
		return Page{}, fmt.Errorf("inspect page: %w", err)
	}

	page.Slots = make([]SlotElement, len(raw))
	for i, s := range raw {
		page.Slots[i] = SlotElement{
			Label:   s.Label,
			Classes: s.ClassName,
			Enabled: !s.Disabled,
			Color:   s.Color,
		}
	}
	return page, nil
}

// Close terminates the browser process.
func (c *ChromeAccessor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.session.cancel()
	return nil
}
