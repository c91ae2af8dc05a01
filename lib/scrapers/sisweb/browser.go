package sisweb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type BrowserOptions struct {
	// defaults to DefaultGradesUrl
	GradesUrl string
	// host of the CAS login server, defaults to "cas.uth.gr"
	CasHost string
	// dashboard to fall back to when the grades link must be
	// discovered, defaults to "https://sis-web.uth.gr/student/main"
	DashboardUrl string
	// bounds the whole run, defaults to 90s
	Timeout time.Duration
}

const (
	defaultCasHost      = "cas.uth.gr"
	defaultDashboardUrl = "https://sis-web.uth.gr/student/main"

	usernameSelector = `input[name="username"]`
	passwordSelector = `input[name="password"]`
	submitSelector   = `input[type="submit"],button[type="submit"],input[name="submit"]`
	gradesLink       = `a[href*="grades/list_diploma"]`
)

func (o *BrowserOptions) fillDefaults() {
	if o.GradesUrl == "" {
		o.GradesUrl = DefaultGradesUrl
	}
	if o.CasHost == "" {
		o.CasHost = defaultCasHost
	}
	if o.DashboardUrl == "" {
		o.DashboardUrl = defaultDashboardUrl
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Second * 90
	}
}

// FetchGradesBrowser is the self-contained alternative to Login +
// FetchGrades for when the SIS refuses plain HTTP clients. It drives
// a disposable headless browser through the whole CAS dance and runs
// the transcript-table extraction against the live DOM. All-or-nothing:
// any step failure comes back as an AutomationError and the browser
// context is released on every path.
func FetchGradesBrowser(ctx context.Context, username, password string, opts BrowserOptions) ([]GradeRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchGradesBrowser")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	opts.fillDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(browserUserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelTimeout()

	fail := func(step string, err error) ([]GradeRecord, error) {
		auto := &AutomationError{Step: step, Err: err}
		span.RecordError(auto)
		span.SetStatus(codes.Error, auto.Error())
		return nil, auto
	}

	var location string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(opts.GradesUrl),
		chromedp.Location(&location),
	)
	if err != nil {
		return fail("navigate", err)
	}

	if strings.Contains(location, opts.CasHost) {
		err = chromedp.Run(runCtx,
			chromedp.WaitVisible(usernameSelector),
			chromedp.SendKeys(usernameSelector, username),
			chromedp.SendKeys(passwordSelector, password),
			chromedp.Click(submitSelector),
			// the click triggers a cross-host navigation, waiting on
			// the next document's body is how we know it finished
			chromedp.WaitReady("body"),
		)
		if err != nil {
			return fail("login", err)
		}
	}

	gradesUrl := opts.GradesUrl
	if opts.GradesUrl == DefaultGradesUrl {
		// the real grades link carries a p= parameter that changes
		// per student, discover it from the dashboard when the caller
		// didn't pin an exact url
		if discovered, err := discoverGradesLink(runCtx, opts.DashboardUrl); err == nil && discovered != "" {
			gradesUrl = discovered
		}
	}

	// some CAS flows land on a generic dashboard instead of the
	// original service url, navigating again settles it
	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(gradesUrl),
		chromedp.WaitVisible(diplomaTableSelector),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return fail("grades table", err)
	}

	records := ExtractDiploma(html)
	if len(records) == 0 {
		span.SetStatus(codes.Error, ErrExtractionEmpty.Error())
		return nil, ErrExtractionEmpty
	}
	span.SetAttributes(attribute.Int("record_count", len(records)))
	return records, nil
}

func discoverGradesLink(ctx context.Context, dashboardUrl string) (string, error) {
	var href string
	var found bool
	err := chromedp.Run(ctx,
		chromedp.Navigate(dashboardUrl),
		chromedp.WaitReady("body"),
		// AtLeast(0) keeps this from blocking until timeout when the
		// dashboard has no grades link at all
		chromedp.AttributeValue(gradesLink, "href", &href, &found, chromedp.AtLeast(0)),
	)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("no grades link on the dashboard")
	}
	return resolveLocation(dashboardUrl, href), nil
}
