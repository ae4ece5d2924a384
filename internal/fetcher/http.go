// Package fetcher downloads the pipeline's source files (EJSCREEN and
// USALEEP extracts) with rate limiting and retry.
package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
}

// Fetcher is a rate-limited HTTP downloader.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Fetcher. Zero-valued options get sane defaults.
func New(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 2
	}
	return &Fetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		opts:    opts,
	}
}

// DownloadTo streams url into destPath, retrying transient failures
// with exponential backoff and jitter.
func (f *Fetcher) DownloadTo(ctx context.Context, url, destPath string) error {
	log := zap.L().With(
		zap.String("component", "fetcher"),
		zap.String("url", url),
	)

	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			backoff += time.Duration(rand.Int64N(int64(time.Second)))
			log.Warn("retrying download",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "fetcher: canceled")
			case <-time.After(backoff):
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "fetcher: rate limit wait")
		}

		lastErr = f.downloadOnce(ctx, url, destPath)
		if lastErr == nil {
			return nil
		}
	}
	return eris.Wrapf(lastErr, "fetcher: download %s failed after %d attempts", url, f.opts.MaxRetries+1)
}

func (f *Fetcher) downloadOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "fetcher: build request")
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "fetcher: request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("fetcher: unexpected status %d", resp.StatusCode)
	}

	tmp := destPath + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "fetcher: create temp file")
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "fetcher: copy body")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "fetcher: close temp file")
	}

	return eris.Wrap(os.Rename(tmp, destPath), "fetcher: rename temp file")
}
