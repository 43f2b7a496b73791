// Package jobsource downloads a job posting page and reduces it to plain text.
package jobsource

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"

	"github.com/PuerkitoBio/goquery"
	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodySize bounds how much of a page is read
const maxBodySize = 5 << 20

// Posting is the text of a job posting page
type Posting struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Selectors tried in order to locate the posting body. The first match wins.
var postingSelectors = []string{
	".job-description",
	"#job-description",
	".job-details",
	".posting-content",
	"[data-testid='job-description']",
	"[itemprop='description']",
	"main",
	"article",
	".content",
	"#content",
}

const noiseSelector = "nav, footer, header, script, style, noscript, iframe, form, .cookie-banner, .sidebar, .ad, .ads"

// Fetcher retrieves job postings over HTTP
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	logger     *errors.Logger

	// initialInterval is the first retry delay
	initialInterval time.Duration
}

func NewFetcher(cfg config.JobSourceConfig, logger *errors.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(newTransport(cfg.AllowPrivate)),
		},
		userAgent:       cfg.UserAgent,
		maxRetries:      maxRetries,
		logger:          logger,
		initialInterval: 500 * time.Millisecond,
	}
}

// errBlockedAddress is returned when a posting URL resolves to an internal address
var errBlockedAddress = stderrors.New("address is not publicly routable")

// newTransport returns a transport that refuses internal addresses unless
// allowPrivate is set. The check runs on the resolved IP of every
// connection, redirects included. Proxies are bypassed while it is active.
func newTransport(allowPrivate bool) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if allowPrivate {
		return transport
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   rejectInternal,
	}
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return transport
}

func rejectInternal(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	return nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Fetch downloads rawURL and returns the main text of the page.
// Server errors and transport failures are retried with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Posting, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Posting{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid job posting URL: %q", rawURL), err)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.initialInterval
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(f.maxRetries)), ctx)

	attempt := 0
	var body []byte
	op := func() error {
		attempt++
		var err error
		body, err = f.get(ctx, rawURL)
		if err != nil && !isPermanent(err) {
			f.logger.Warn("Job posting fetch failed, retrying",
				"url", rawURL, "attempt", attempt, "error", err)
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		var perm *backoff.PermanentError
		if stderrors.As(err, &perm) {
			err = perm.Err
		}
		return Posting{}, err
	}

	posting, err := ExtractPosting(body)
	if err != nil {
		return Posting{}, err
	}
	posting.URL = rawURL

	f.logger.Debug("Job posting fetched",
		"url", rawURL, "attempts", attempt, "chars", len(posting.Text))
	return posting, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"cannot build job posting request", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if stderrors.Is(err, errBlockedAddress) {
			return nil, backoff.Permanent(errors.NewValidationError(errors.ErrCodeInvalidRequest,
				"job posting URL points to an internal address", err).WithContext("url", rawURL))
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
				"job posting fetch cancelled", err).WithContext("url", rawURL))
		}
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"job posting request failed", err).WithContext("url", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"cannot read job posting body", err).WithContext("url", rawURL)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewServiceUnavailableError("jobsource", resp.StatusCode,
			fmt.Sprintf("job posting server returned %d", resp.StatusCode), nil).WithContext("url", rawURL)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("job posting URL returned %d", resp.StatusCode), nil).
			WithContext("url", rawURL).WithContext("upstream_status", resp.StatusCode))
	}
	return data, nil
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return stderrors.As(err, &perm)
}

// ExtractPosting reduces an HTML page to the text of its posting
func ExtractPosting(html []byte) (Posting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Posting{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			"cannot parse job posting HTML", err)
	}

	title := cleanWhitespace(doc.Find("title").First().Text())
	doc.Find(noiseSelector).Remove()

	content := doc.Find("body")
	for _, selector := range postingSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}

	text := cleanWhitespace(content.Text())
	if text == "" {
		return Posting{}, errors.NewDocumentError(errors.ErrCodeDocumentEmpty,
			"job posting page has no text", nil)
	}
	return Posting{Title: title, Text: text}, nil
}

// cleanWhitespace trims every line and drops blank ones
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
