package jobsource

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
)

const postingPage = `<!DOCTYPE html>
<html>
<head><title>Data Engineer - Acme</title><style>body{color:red}</style></head>
<body>
  <nav>Accueil | Offres</nav>
  <div class="job-description">
    <h1>Data Engineer</h1>
    <p>Compétences   requises : Python, SQL</p>
    <script>track()</script>
  </div>
  <footer>Mentions légales</footer>
</body>
</html>`

func newTestFetcher(maxRetries int) *Fetcher {
	f := NewFetcher(config.JobSourceConfig{
		Timeout:    2 * time.Second,
		UserAgent:  "cvmatch-test",
		MaxRetries: maxRetries,
		// httptest servers listen on loopback
		AllowPrivate: true,
	}, errors.NewNopLogger())
	f.initialInterval = time.Millisecond
	return f
}

func TestFetchExtractsPostingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cvmatch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(postingPage))
	}))
	defer srv.Close()

	posting, err := newTestFetcher(2).Fetch(context.Background(), srv.URL+"/jobs/42")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/jobs/42", posting.URL)
	assert.Equal(t, "Data Engineer - Acme", posting.Title)
	assert.Equal(t, "Data Engineer\nCompétences requises : Python, SQL", posting.Text)
	assert.NotContains(t, posting.Text, "track()")
	assert.NotContains(t, posting.Text, "Mentions")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(postingPage))
	}))
	defer srv.Close()

	posting, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, posting.Text, "Python, SQL")
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrServiceUnavailable)
	status, ok := errors.UpstreamStatus(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeValidation))
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com/job", "not a url", "https://"} {
		_, err := newTestFetcher(0).Fetch(context.Background(), raw)
		assert.True(t, errors.HasType(err, errors.ErrorTypeValidation), "url %q", raw)
	}
}

func TestExtractPostingFallsBackToBody(t *testing.T) {
	posting, err := ExtractPosting([]byte(`<html><body><div><p>Offre : développeur Go</p></div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Offre : développeur Go", posting.Text)

	_, err = ExtractPosting([]byte(`<html><body><script>x()</script></body></html>`))
	assert.ErrorIs(t, err, errors.ErrDocumentEmpty)
}

func TestFetchRejectsInternalAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(postingPage))
	}))
	defer srv.Close()

	f := NewFetcher(config.JobSourceConfig{Timeout: 2 * time.Second, MaxRetries: 2}, errors.NewNopLogger())
	f.initialInterval = time.Millisecond

	for _, target := range []string{srv.URL + "/jobs/42", "http://169.254.169.254/latest/meta-data/"} {
		_, err := f.Fetch(context.Background(), target)
		require.Error(t, err, target)
		assert.True(t, errors.HasType(err, errors.ErrorTypeValidation), "%s: %v", target, err)
	}
	assert.Zero(t, hits.Load())
}

func TestFetchRejectsRedirectToInternalAddress(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(postingPage))
	}))
	defer internal.Close()
	public := httptest.NewServer(http.RedirectHandler(internal.URL, http.StatusFound))
	defer public.Close()

	// the first hop is allowed through so only the redirect is checked
	f := newTestFetcher(0)
	transport := newTransport(false)
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if addr == strings.TrimPrefix(public.URL, "http://") {
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		}
		return (&net.Dialer{Control: rejectInternal}).DialContext(ctx, network, addr)
	}
	f.client.Transport = transport

	_, err := f.Fetch(context.Background(), public.URL)
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeValidation), "%v", err)
}

func TestIsPublic(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"93.184.216.34", true},
		{"2606:4700::1111", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"192.168.1.10", false},
		{"172.16.0.1", false},
		{"169.254.169.254", false},
		{"0.0.0.0", false},
		{"::1", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"224.0.0.1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isPublic(net.ParseIP(tt.ip)), tt.ip)
	}
}
