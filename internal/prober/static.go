package prober

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"
	"github.com/flxmf365/hospital-booking-bot/lib/htmlutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_static_accessor_render = "static_accessor.render"
)

type StaticOptions struct {
	UserAgent     string
	SlotSelector  string
	LabelSelector string
	Timeout       time.Duration
	// RequestsPerSecond caps outgoing requests across every target sharing the accessor.
	RequestsPerSecond float64
	BypassCloudflare  bool
}

func DefaultStaticOptions() StaticOptions {
	chrome := DefaultChromeOptions()
	return StaticOptions{
		UserAgent:         chrome.UserAgent,
		SlotSelector:      chrome.SlotSelector,
		LabelSelector:     chrome.LabelSelector,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
		BypassCloudflare:  true,
	}
}

// StaticAccessor fetches markup over plain http, it only sees inline styles so
// it suits server rendered pages and saved pages.
type StaticAccessor struct {
	http    *resty.Client
	options StaticOptions
	tel     telemetry.API
}

func NewStaticAccessor(options StaticOptions, tel telemetry.API) *StaticAccessor {
	assert.NotNil(tel)
	assert.NotEmptyStr(options.SlotSelector)

	tel = telemetry.NewScopedAPI("prober", tel)

	httpClient := resty.New()
	if options.BypassCloudflare {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	if options.UserAgent != "" {
		httpClient.SetHeader("user-agent", options.UserAgent)
	}
	httpClient.SetHeader("accept-language", "ko-KR,ko;q=0.9")
	httpClient.SetTimeout(options.Timeout)

	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(rps), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &StaticAccessor{
		http:    httpClient,
		options: options,
		tel:     tel,
	}
}

func (s *StaticAccessor) Render(ctx context.Context, url string) (Page, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return Page{}, fmt.Errorf("fetch: %w", err)
	}
	if res.IsError() {
		return Page{}, fmt.Errorf("fetch: unexpected status %s", res.Status())
	}

	finalURL := url
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	page, err := ParseHTML(finalURL, bytes.NewReader(res.Body()), s.options.SlotSelector, s.options.LabelSelector)
	if err != nil {
		s.tel.ReportBroken(report_static_accessor_render, err, url)
		return Page{}, err
	}
	return page, nil
}

// ParseHTML extracts the slot elements from raw markup. Colors come from inline
// styles, first on the label and then on the cell itself.
func ParseHTML(finalURL string, r io.Reader, slotSelector, labelSelector string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse: %w", err)
	}

	page := Page{FinalURL: finalURL}
	for _, body := range doc.Find("body").Nodes {
		page.Text += htmlutil.CleanText(htmlutil.GetText(body))
	}

	cells := doc.Find(slotSelector)
	page.MarkersFound = cells.Length() > 0
	cells.Each(func(_ int, cell *goquery.Selection) {
		label := cell
		if labelSelector != "" {
			if inner := cell.Find(labelSelector).First(); inner.Length() > 0 {
				label = inner
			}
		}

		color := htmlutil.InlineColor(label.AttrOr("style", ""))
		if color == "" {
			color = htmlutil.InlineColor(cell.AttrOr("style", ""))
		}
		_, disabled := cell.Attr("disabled")

		page.Slots = append(page.Slots, SlotElement{
			Label:   htmlutil.CleanText(label.Text()),
			Classes: cell.AttrOr("class", ""),
			Enabled: !disabled && cell.AttrOr("aria-disabled", "") != "true",
			Color:   color,
		})
	})

	return page, nil
}

// FileAccessor renders a saved page from disk, whatever url it is asked for.
type FileAccessor struct {
	path    string
	options StaticOptions
}

func NewFileAccessor(path string, options StaticOptions) FileAccessor {
	assert.NotEmptyStr(path)
	assert.NotEmptyStr(options.SlotSelector)
	return FileAccessor{path: path, options: options}
}

func (f FileAccessor) Render(ctx context.Context, url string) (Page, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return Page{}, fmt.Errorf("open saved page: %w", err)
	}
	defer file.Close()

	abs, err := filepath.Abs(f.path)
	if err != nil {
		abs = f.path
	}
	return ParseHTML("file://"+filepath.ToSlash(abs), file, f.options.SlotSelector, f.options.LabelSelector)
}
