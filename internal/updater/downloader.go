package updater

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mybus-data/internal/common/logger"
)

type HTTPDownloader struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPDownloader(timeout time.Duration, logger logger.Logger) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string, dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating download directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "busstops_download_*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()

	checksum, err := d.fetchInto(ctx, url, tempFile)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(tempPath)
		return "", "", err
	}

	return tempPath, checksum, nil
}

func (d *HTTPDownloader) fetchInto(ctx context.Context, url string, dst *os.File) (string, error) {
	d.logger.Info("Starting database download", "url", url, "dest", dst.Name())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	hash := md5.New()
	written, err := d.copyWithProgress(io.MultiWriter(dst, hash), resp.Body, resp.ContentLength)
	if err != nil {
		return "", fmt.Errorf("downloading file: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("syncing download: %w", err)
	}

	checksum := hex.EncodeToString(hash.Sum(nil))
	d.logger.Info("Download completed",
		"url", url,
		"size_bytes", written,
		"checksum", checksum)

	return checksum, nil
}

func (d *HTTPDownloader) copyWithProgress(dst io.Writer, src io.Reader, totalSize int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	lastLog := time.Now()

	for {
		nr, err := src.Read(buf)
		if nr > 0 {
			nw, err := dst.Write(buf[0:nr])
			if err != nil {
				return written, err
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
			written += int64(nw)

			if time.Since(lastLog) > 5*time.Second && totalSize > 0 {
				progress := float64(written) / float64(totalSize) * 100
				d.logger.Debug("Download progress",
					"progress_percent", fmt.Sprintf("%.1f", progress),
					"bytes_downloaded", written,
					"total_bytes", totalSize)
				lastLog = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	return written, nil
}
