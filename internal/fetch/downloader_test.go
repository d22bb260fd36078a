package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"districtvotes/internal/config"
	"districtvotes/internal/plans"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func testDownloader(t *testing.T, rt roundTripFunc) *Downloader {
	t.Helper()
	cfg := config.Config{
		DataDir:           t.TempDir(),
		DocWorkers:        2,
		FetchTimeoutMs:    1000,
		FetchRateLimitRPS: 1000,
		FetchMaxAttempts:  3,
	}
	d := NewDownloader(cfg, nil)
	d.httpClient = &http.Client{Transport: rt}
	d.backoff = func(int) time.Duration { return time.Millisecond }
	return d
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	attempt := 0
	d := testDownloader(t, func(r *http.Request) (*http.Response, error) {
		attempt++
		if attempt == 1 {
			return response(http.StatusServiceUnavailable, "busy"), nil
		}
		return response(http.StatusOK, "%PDF-1.4 body"), nil
	})

	dest := filepath.Join(d.dataDir, "pdf", "a.pdf")
	res, err := d.Download(context.Background(), "https://example.test/a.pdf", dest, false)
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
	assert.Equal(t, sum("%PDF-1.4 body"), res.Checksum)
	assert.EqualValues(t, len("%PDF-1.4 body"), res.Bytes)

	blob, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(blob))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dest), "*.part"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	attempt := 0
	d := testDownloader(t, func(r *http.Request) (*http.Response, error) {
		attempt++
		return response(http.StatusNotFound, "missing"), nil
	})
	dest := filepath.Join(d.dataDir, "a.pdf")
	_, err := d.Download(context.Background(), "https://example.test/a.pdf", dest, false)
	require.Error(t, err)
	assert.Equal(t, 1, attempt)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadSkipsExistingUnlessForced(t *testing.T) {
	calls := 0
	d := testDownloader(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return response(http.StatusOK, "new"), nil
	})
	dest := filepath.Join(d.dataDir, "a.pdf")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	res, err := d.Download(context.Background(), "https://example.test/a.pdf", dest, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, sum("old"), res.Checksum)
	assert.Zero(t, calls)

	res, err = d.Download(context.Background(), "https://example.test/a.pdf", dest, true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, calls)
}

func TestFetchSourcesOnlyThoseWithURL(t *testing.T) {
	d := testDownloader(t, func(r *http.Request) (*http.Response, error) {
		return response(http.StatusOK, r.URL.Path), nil
	})
	sources := []plans.Source{
		{Year: 2022, Level: "senate", Plan: "PLANS2168", Kind: "red206", Path: "pdf/s22.pdf", URL: "https://example.test/s22.pdf"},
		{Year: 2022, Level: "senate", Plan: "VTD2022", Kind: "vtd", Path: "vtd/22.csv"},
	}
	results, err := d.FetchSources(context.Background(), sources, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, sources[0].ID(), results[0].SourceID)
	assert.Equal(t, filepath.Join(d.dataDir, "pdf", "s22.pdf"), results[0].Path)
}

func TestDownloadWithoutURL(t *testing.T) {
	d := testDownloader(t, nil)
	_, err := d.Download(context.Background(), "", "x", false)
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestDownloadRetriesRateLimited(t *testing.T) {
	d := testDownloader(t, nil)
	mock := httpmock.NewMockTransport()
	d.httpClient = &http.Client{Transport: mock}

	const url = "https://example.test/vtd/2020_general.csv"
	calls := 0
	mock.RegisterResponder(http.MethodGet, url, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return httpmock.NewStringResponse(http.StatusTooManyRequests, "slow down"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "Office,Name,Party,Votes\n"), nil
	})

	dest := filepath.Join(d.dataDir, "vtd", "2020.csv")
	res, err := d.Download(context.Background(), url, dest, false)
	require.NoError(t, err)
	assert.Equal(t, 3, mock.GetTotalCallCount())
	assert.Equal(t, sum("Office,Name,Party,Votes\n"), res.Checksum)

	mock.Reset()
	mock.RegisterResponder(http.MethodGet, url, httpmock.NewStringResponder(http.StatusBadGateway, "down"))
	_, err = d.Download(context.Background(), url, dest, true)
	require.Error(t, err)
	assert.Equal(t, 3, mock.GetTotalCallCount(), "gives up after max attempts")
	blob, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Office,Name,Party,Votes\n", string(blob), "failed refresh keeps the old file")
}
