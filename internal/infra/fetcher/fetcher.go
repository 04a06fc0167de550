package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/infra/logging"
	"scalable-rag-engine/internal/infra/metrics"
)

const (
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
	FallbackUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"

	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
)

var _ adapter.ContentFetcher = (*HTTPFetcher)(nil)

type Options struct {
	Timeout      time.Duration // per attempt
	MaxBodyBytes int64
	Retry        RetryPolicy
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// HTTPFetcher downloads pages with browser-like headers and retries
// transient failures according to its RetryPolicy.
type HTTPFetcher struct {
	client  *http.Client
	retry   RetryPolicy
	maxBody int64
	log     *zerolog.Logger
}

func New(opts Options, log *zerolog.Logger) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = IsRetryable
	}
	if log == nil {
		log = logging.Nop()
	}
	l := log.With().Str("component", "fetcher").Logger()
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		retry:   opts.Retry,
		maxBody: opts.MaxBodyBytes,
		log:     &l,
	}
}

// Fetch returns the cleaned text of url. Errors are *domain.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	defer func() { metrics.ObserveFetchDuration(time.Since(start).Seconds()) }()

	log := logging.With(ctx, f.log).With().Str("url", url).Logger()
	userAgent := DefaultUserAgent
	var text string

	err := f.retry.Do(ctx, func(attempt int) error {
		log.Debug().Int("attempt", attempt+1).Str("user_agent", userAgent).Msg("fetching")
		t, err := f.get(ctx, url, userAgent)
		if err != nil {
			if blocked(err) {
				userAgent = FallbackUserAgent
			}
			return err
		}
		text = t
		return nil
	}, func(err error, next time.Duration) {
		metrics.IncFetchAttempt("retry")
		log.Warn().Err(err).Dur("backoff", next).Msg("fetch failed, retrying")
	})
	if err == nil {
		metrics.IncFetchAttempt("ok")
		log.Info().Int("chars", utf8.RuneCountInString(text)).Msg("fetched and cleaned text")
		return text, nil
	}

	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		// cancelled while waiting between attempts
		fe = &domain.FetchError{URL: url, Kind: domain.FetchTransient, Err: err}
	}
	if fe.Transient() && blocked(fe) {
		// still blocked after the last attempt
		fe.Kind = domain.FetchPermanent
	}
	if fe.Transient() {
		metrics.IncFetchAttempt("exhausted")
	} else {
		metrics.IncFetchAttempt("permanent")
	}
	log.Error().Err(fe).Msg("fetch failed")
	return "", fe
}

func (f *HTTPFetcher) get(ctx context.Context, url, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &domain.FetchError{URL: url, Kind: domain.FetchPermanent, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", transportError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", statusError(url, resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &domain.FetchError{URL: url, Kind: domain.FetchPermanent, Err: fmt.Errorf("decode body: %w", err)}
	}
	text, err := ExtractText(body)
	if err != nil {
		// body read errors surface here
		return "", transportError(url, err)
	}
	return text, nil
}

func statusError(url string, code int) *domain.FetchError {
	kind := domain.FetchPermanent
	if code >= 500 || code == http.StatusForbidden || code == http.StatusNotAcceptable {
		kind = domain.FetchTransient
	}
	return &domain.FetchError{URL: url, StatusCode: code, Kind: kind, Err: errors.New(http.StatusText(code))}
}

func transportError(url string, err error) *domain.FetchError {
	kind := domain.FetchPermanent
	if isTimeout(err) {
		kind = domain.FetchTransient
	}
	return &domain.FetchError{URL: url, Kind: kind, Err: err}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func blocked(err error) bool {
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.StatusCode == http.StatusForbidden || fe.StatusCode == http.StatusNotAcceptable
}
