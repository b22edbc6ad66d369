// Package storage provides a client for the object-storage service that
// holds uploaded animal images.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/errors"
	"github.com/innovyom/breedscan-go/internal/httpclient"
	"github.com/innovyom/breedscan-go/internal/logging"
)

// maxObjectSize caps downloads at 32 MiB, well above any animal photo.
const maxObjectSize = 32 << 20

// Downloader fetches objects from bucket storage.
type Downloader interface {
	// Download returns the object bytes and content type for the given
	// bucket and object path.
	Download(ctx context.Context, bucket, objectPath string) ([]byte, string, error)
}

// Client talks to the storage service's object REST API.
type Client struct {
	baseURL    string
	serviceKey string
	http       *httpclient.Client
	logger     *slog.Logger
}

// NewClient creates a storage client from settings. Returns nil when no
// storage service is configured; callers treat a nil client as
// "locator never matches".
func NewClient(settings *conf.Settings, hc *httpclient.Client) *Client {
	if settings.Storage.URL == "" {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(settings.Storage.URL, "/"),
		serviceKey: settings.Storage.ServiceKey,
		http:       hc,
		logger:     logging.ForService("storage"),
	}
}

// Download fetches an object from the given bucket. The object path may
// contain slashes; each segment is escaped individually.
func (c *Client) Download(ctx context.Context, bucket, objectPath string) ([]byte, string, error) {
	if bucket == "" || objectPath == "" {
		return nil, "", errors.Newf("storage download requires bucket and object path").
			Component("storage").
			Category(errors.CategoryValidation).
			Build()
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s",
		c.baseURL, url.PathEscape(bucket), escapeObjectPath(objectPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, "", errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("bucket", bucket).
			Build()
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, "", errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("bucket", bucket).
			Context("object_path", objectPath).
			Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close storage response body", "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("storage download returned status %d", resp.StatusCode).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("bucket", bucket).
			Context("object_path", objectPath).
			Context("status_code", resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize+1))
	if err != nil {
		return nil, "", errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("bucket", bucket).
			Build()
	}
	if len(data) > maxObjectSize {
		return nil, "", errors.Newf("object exceeds %d byte limit", maxObjectSize).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("bucket", bucket).
			Build()
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	c.logger.Debug("storage object downloaded",
		"bucket", bucket,
		"object_path", objectPath,
		"bytes", len(data),
		"content_type", contentType)

	return data, contentType, nil
}

// escapeObjectPath escapes each path segment while preserving separators.
func escapeObjectPath(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
