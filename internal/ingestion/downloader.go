package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeovahfialho/tradelog/pkg/logger"
)

// Downloader fetches remote CSV exports into a local directory so they can
// be imported like any other file.
type Downloader struct {
	client  *resty.Client
	limiter *rate.Limiter
	workers int
}

// NewDownloader builds a Downloader running at most workers transfers at a
// time and starting at most perSecond requests per second.
func NewDownloader(workers int, perSecond float64, timeout time.Duration) *Downloader {
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Downloader{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
		limiter: rate.NewLimiter(limit, workers),
		workers: workers,
	}
}

// IsRemote reports whether source is an http(s) URL rather than a local path.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// DownloadFile saves rawURL under outputDir as name and returns the local path.
// The file only appears once the transfer completed.
func (d *Downloader) DownloadFile(ctx context.Context, rawURL, outputDir, name string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", outputDir, err)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return "", fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode())
	}

	outputPath := filepath.Join(outputDir, name)
	tempFile := outputPath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tempFile, err)
	}

	written, err := io.Copy(file, body)
	file.Close()
	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("save %s: %w", rawURL, err)
	}

	if err := os.Rename(tempFile, outputPath); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("rename %s: %w", tempFile, err)
	}

	logger.WithContext(ctx).Info("downloaded csv",
		zap.String("url", rawURL),
		zap.String("path", outputPath),
		zap.Int64("bytes", written))

	return outputPath, nil
}

// DownloadAll fetches every URL concurrently. Paths keep the order of urls;
// a failed download leaves an empty path and a non-nil error at its index.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, outputDir string) ([]string, []error) {
	paths := make([]string, len(urls))
	errs := make([]error, len(urls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.workers)

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			paths[i], errs[i] = d.DownloadFile(ctx, u, outputDir, localName(i, u))
		}(i, u)
	}
	wg.Wait()

	return paths, errs
}

// localName derives a collision-free file name from the URL's last path
// segment.
func localName(i int, rawURL string) string {
	base := "download.csv"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = b
		}
	}
	return fmt.Sprintf("%02d-%s", i, base)
}
