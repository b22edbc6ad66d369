// Package resolver obtains raw image bytes for a classification request,
// preferring a storage-service download when the URL carries a bucket
// locator and falling back to a direct HTTP fetch.
package resolver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/innovyom/breedscan-go/internal/errors"
	"github.com/innovyom/breedscan-go/internal/httpclient"
	"github.com/innovyom/breedscan-go/internal/logging"
	"github.com/innovyom/breedscan-go/internal/observability"
	"github.com/innovyom/breedscan-go/internal/storage"
)

// maxImageSize caps direct fetches at 32 MiB.
const maxImageSize = 32 << 20

// Image holds resolved image bytes and their content type.
type Image struct {
	Data        []byte
	ContentType string
	// FromStorage reports whether the bytes came from the storage
	// service rather than a direct fetch.
	FromStorage bool
}

// Resolver fetches image bytes from storage or over plain HTTP.
type Resolver struct {
	storage storage.Downloader
	http    *httpclient.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Resolver. The storage downloader may be nil, in which
// case every URL resolves through the direct fetch path.
func New(store storage.Downloader, hc *httpclient.Client, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		storage: store,
		http:    hc,
		metrics: metrics,
		logger:  logging.ForService("resolver"),
	}
}

// ParseLocator interprets imageURL as a storage-service locator. A URL
// whose path contains a segment literally equal to "public" names the
// following segment as the bucket and the remaining segments as the
// object path. Returns ok=false when the shape does not match.
func ParseLocator(imageURL string) (bucket, objectPath string, ok bool) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "public" {
			continue
		}
		// Need at least a bucket and one object path segment after "public".
		if i+2 >= len(segments) {
			break
		}
		bucket = segments[i+1]
		objectPath = strings.Join(segments[i+2:], "/")
		if bucket == "" || objectPath == "" {
			break
		}
		return bucket, objectPath, true
	}
	return "", "", false
}

// Resolve returns image bytes and content type for imageURL. Exactly one
// of storage download or HTTP fetch supplies the bytes; storage is tried
// first whenever the URL shape matches, with HTTP as the unconditional
// fallback. A failed fallback fetch is the only hard failure.
func (r *Resolver) Resolve(ctx context.Context, imageURL string) (*Image, error) {
	if bucket, objectPath, ok := ParseLocator(imageURL); ok && r.storage != nil {
		data, contentType, err := r.storage.Download(ctx, bucket, objectPath)
		if err == nil {
			if r.metrics != nil {
				r.metrics.StorageDownloads.Inc()
			}
			r.logger.Info("image resolved from storage",
				"bucket", bucket,
				"object_path", objectPath,
				"bytes", len(data),
				"content_type", contentType)
			return &Image{Data: data, ContentType: contentType, FromStorage: true}, nil
		}
		// Storage failure is not fatal, the direct fetch may still work.
		r.logger.Warn("storage download failed, falling back to direct fetch",
			"bucket", bucket,
			"object_path", objectPath,
			"error", err)
	}

	return r.fetchDirect(ctx, imageURL)
}

// fetchDirect performs a plain HTTP GET of imageURL with a no-cache
// directive. A non-2xx status is a hard failure.
func (r *Resolver) fetchDirect(ctx context.Context, imageURL string) (*Image, error) {
	if r.metrics != nil {
		r.metrics.FallbackFetches.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("resolver").
			Category(errors.CategoryImageFetch).
			Context("image_url", imageURL).
			Build()
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.http.Do(ctx, req)
	if err != nil {
		return nil, errors.New(err).
			Component("resolver").
			Category(errors.CategoryImageFetch).
			Context("image_url", imageURL).
			Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Warn("failed to close fetch response body", "error", cerr)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Newf("failed to fetch image: %d %s", resp.StatusCode, resp.Status).
			Component("resolver").
			Category(errors.CategoryImageFetch).
			Context("image_url", imageURL).
			Context("status_code", resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, errors.New(err).
			Component("resolver").
			Category(errors.CategoryImageFetch).
			Context("image_url", imageURL).
			Build()
	}
	if len(data) > maxImageSize {
		return nil, errors.Newf("image exceeds %d byte limit", maxImageSize).
			Component("resolver").
			Category(errors.CategoryImageFetch).
			Context("image_url", imageURL).
			Build()
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	r.logger.Info("image resolved from direct fetch",
		"image_url", imageURL,
		"bytes", len(data),
		"content_type", contentType)

	return &Image{Data: data, ContentType: contentType}, nil
}
