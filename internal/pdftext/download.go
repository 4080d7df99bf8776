package pdftext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"paperlens/internal/util"
)

func IsRemote(path string) bool {
	p := strings.ToLower(strings.TrimSpace(path))
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

type Downloader struct {
	dir    string
	client *http.Client
}

func NewDownloader(dir string, timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Downloader{dir: dir, client: &http.Client{Timeout: timeout}}
}

// Download fetches url into the download directory and returns the local path.
// The file name is derived from the URL so repeated downloads overwrite.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}
	dst := filepath.Join(d.dir, cacheName(url))
	err = util.WriteFileAtomic(dst, func(w io.Writer) error {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

func cacheName(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:12]) + ".pdf"
}
