// Package fetch downloads catalogued source documents into the data directory.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"districtvotes/internal/config"
	"districtvotes/internal/plans"
)

var ErrNoURL = errors.New("source has no download url")

type Downloader struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	dataDir     string
	workers     int
	logger      *zap.Logger
	backoff     func(attempt int) time.Duration
}

func NewDownloader(cfg config.Config, logger *zap.Logger) *Downloader {
	rps := cfg.FetchRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	attempts := cfg.FetchMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		maxAttempts: attempts,
		dataDir:     cfg.DataDir,
		workers:     cfg.DocWorkers,
		logger:      logger,
		backoff:     defaultBackoff,
	}
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

type Result struct {
	SourceID string
	Path     string
	Checksum string
	Bytes    int64
	// Skipped is set when the file already existed and force was off.
	Skipped bool
}

// FetchSources downloads every catalogued source that has a URL. Existing
// files are kept unless force is set.
func (d *Downloader) FetchSources(ctx context.Context, sources []plans.Source, force bool) ([]Result, error) {
	var todo []plans.Source
	for _, src := range sources {
		if src.URL != "" {
			todo = append(todo, src)
		}
	}

	results := make([]Result, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.workers, 1))
	for i, src := range todo {
		g.Go(func() error {
			dest := src.Path
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(d.dataDir, dest)
			}
			res, err := d.Download(gctx, src.URL, dest, force)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", src.ID(), err)
			}
			res.SourceID = src.ID()
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Download fetches url into dest through a temporary file so a failed
// transfer never leaves a truncated document behind.
func (d *Downloader) Download(ctx context.Context, url, dest string, force bool) (Result, error) {
	if url == "" {
		return Result{}, ErrNoURL
	}
	if !force {
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			sum, err := Checksum(dest)
			if err != nil {
				return Result{}, err
			}
			return Result{Path: dest, Checksum: sum, Bytes: info.Size(), Skipped: true}, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		res, retry, err := d.fetchOnce(ctx, url, dest)
		if err == nil {
			d.logger.Info("downloaded", zap.String("url", url), zap.String("path", dest), zap.Int64("bytes", res.Bytes))
			return res, nil
		}
		lastErr = err
		if !retry || attempt == d.maxAttempts {
			break
		}
		d.logger.Warn("download retry", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(d.backoff(attempt)):
		}
	}
	return Result{}, lastErr
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, false, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Result{}, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, isRetryableStatus(resp.StatusCode), fmt.Errorf("download status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return Result{}, false, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Result{}, true, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Result{}, false, err
	}
	return Result{Path: dest, Checksum: hex.EncodeToString(h.Sum(nil)), Bytes: n}, false, nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Checksum is the hex sha256 of a file's content.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
