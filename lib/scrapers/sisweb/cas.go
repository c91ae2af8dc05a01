package sisweb

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"uthsis-backend/lib/telemetry"
	"uthsis-backend/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/sisweb")

const (
	DefaultCasLoginUrl = "https://cas.uth.gr/login"
	DefaultGradesUrl   = "https://sis-web.uth.gr/student/grades/list_diploma"

	// the CAS endpoint serves a different flow to clients that don't
	// look like a real browser
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	maxRedirectHops = 5
)

type ClientOptions struct {
	// defaults to DefaultCasLoginUrl
	CasLoginUrl string
	// defaults to DefaultGradesUrl
	GradesUrl string
	// per-request timeout, defaults to 30s
	Timeout time.Duration
}

// Client drives the CAS login state machine over plain HTTP and
// redeems sessions against the grades page. All redirects are
// observed manually, the service ticket only ever shows up in a
// Location header that an auto-following client would swallow.
type Client struct {
	casLoginUrl string
	gradesUrl   string
	http        *resty.Client
	registry    *SessionRegistry
}

func NewClient(opts ClientOptions, registry *SessionRegistry) *Client {
	if opts.CasLoginUrl == "" {
		opts.CasLoginUrl = DefaultCasLoginUrl
	}
	if opts.GradesUrl == "" {
		opts.GradesUrl = DefaultGradesUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", browserUserAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetRedirectPolicy(resty.NoRedirectPolicy())

	telemetry.InstrumentResty(client, "scrapers/sisweb/http")

	return &Client{
		casLoginUrl: opts.CasLoginUrl,
		gradesUrl:   opts.GradesUrl,
		http:        client,
		registry:    registry,
	}
}

// resty reports a disabled auto-redirect as a request error, the
// response headers are still usable
func isRedirect(res *resty.Response) bool {
	return res != nil && res.RawResponse != nil &&
		res.StatusCode() >= http.StatusMultipleChoices &&
		res.StatusCode() < http.StatusBadRequest
}

func loginExecutionToken(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return ""
	}
	return doc.Find(`input[name="execution"]`).AttrOr("value", "")
}

func resolveLocation(base, next string) string {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return next
	}
	nextUrl, err := url.Parse(next)
	if err != nil {
		return next
	}
	return baseUrl.ResolveReference(nextUrl).String()
}

// follow fetches a location replaying the accumulated cookies and
// keeps going through Location headers, merging Set-Cookie at every
// hop, until it lands on a non-redirect response.
func (c *Client) follow(ctx context.Context, location string, cookies *CookieSet) (*resty.Response, error) {
	var res *resty.Response
	for hop := 0; hop < maxRedirectHops; hop++ {
		var err error
		res, err = c.http.R().
			SetContext(ctx).
			SetHeader("cookie", cookies.Header()).
			Get(location)
		if err != nil && !isRedirect(res) {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
		}
		cookies.Absorb(res.Header())

		next := res.Header().Get("Location")
		if next == "" {
			return res, nil
		}
		location = resolveLocation(location, next)
	}
	return res, nil
}

// Login runs the full CAS flow and, on success, parks the merged
// cookies in the session registry. The returned id is what callers
// redeem later with FetchGrades.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	cookies := NewCookieSet()
	loginUrl := c.casLoginUrl + "?service=" + url.QueryEscape(c.gradesUrl)

	res, err := c.http.R().
		SetContext(ctx).
		Get(loginUrl)
	if err != nil && !isRedirect(res) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch the CAS login page")
		return "", fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}
	// some CAS deployments set anti-forgery cookies before any
	// credentials are submitted
	cookies.Absorb(res.Header())

	form := url.Values{
		"username": {username},
		"password": {password},
		"_eventId": {"submit"},
	}
	if execution := loginExecutionToken(res.Body()); execution != "" {
		form.Set("execution", execution)
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetHeader("cookie", cookies.Header()).
		SetBody(form.Encode()).
		Post(loginUrl)
	if err != nil && !isRedirect(res) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit credentials")
		return "", fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}
	cookies.Absorb(res.Header())

	// a successful login always redirects back to the service url
	// with a ticket, no Location means CAS re-rendered its form
	location := res.Header().Get("Location")
	if location == "" {
		span.SetStatus(codes.Error, ErrInvalidCredentials.Error())
		return "", ErrInvalidCredentials
	}

	_, err = c.follow(ctx, resolveLocation(loginUrl, location), cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to follow the service redirect")
		return "", err
	}

	if !cookies.HasAuthMarker() {
		span.SetStatus(codes.Error, ErrInvalidCredentials.Error())
		return "", ErrInvalidCredentials
	}

	id, err := c.registry.Create(Session{
		Username:  username,
		Cookies:   cookies.Header(),
		GradesUrl: c.gradesUrl,
		CreatedAt: timezone.Now(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to register the session")
		return "", err
	}
	return id, nil
}

// FetchGrades redeems a session id against the grades page recorded
// at login time.
func (c *Client) FetchGrades(ctx context.Context, sessionId string) ([]GradeRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchGrades")
	defer span.End()

	session, ok := c.registry.Get(sessionId)
	if !ok {
		span.SetStatus(codes.Error, ErrSessionExpired.Error())
		return nil, ErrSessionExpired
	}
	span.SetAttributes(attribute.String("username", session.Username))

	cookies := ParseCookieHeader(session.Cookies)
	res, err := c.follow(ctx, session.GradesUrl, cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch the grades page")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		err := fmt.Errorf("%w: grades page returned %d", ErrUpstreamUnavailable, res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records := Extract(res.String())
	if len(records) == 0 {
		span.SetStatus(codes.Error, ErrExtractionEmpty.Error())
		return nil, ErrExtractionEmpty
	}
	span.SetAttributes(attribute.Int("record_count", len(records)))
	return records, nil
}

// ParseCookieHeader rebuilds an accumulator from a previously merged
// Cookie header value.
func ParseCookieHeader(header string) *CookieSet {
	s := NewCookieSet()
	for _, pair := range strings.Split(header, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || name == "" {
			continue
		}
		if _, seen := s.values[name]; !seen {
			s.order = append(s.order, name)
		}
		s.values[name] = value
	}
	return s
}
