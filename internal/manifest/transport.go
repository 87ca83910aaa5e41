package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSource fetches the manifest body via a plain GET, grounded on
// the request construction idiom in the teacher's
// internal/gcpclient/genai.go REST path.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates an HTTPSource for url.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{url: url, client: client}
}

func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", httpAsSourceError(s.url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", httpAsSourceError(s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", httpAsSourceError(s.url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", httpAsSourceError(s.url, err)
	}
	return string(body), nil
}

// ObjectDownloader is the subset of gcpclient.StorageAdapter this
// package needs: a read-only opaque blob fetch.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSSource fetches the manifest body from a gs://bucket/object URL
// via the teacher's StorageAdapter, adapted here from its
// SignedURL/Upload duties into a plain read.
type GCSSource struct {
	bucket     string
	object     string
	downloader ObjectDownloader
}

// NewGCSSource parses a gs://bucket/object URL and creates a
// GCSSource. Returns an error if sourceURL isn't a well-formed gs://
// reference.
func NewGCSSource(sourceURL string, downloader ObjectDownloader) (*GCSSource, error) {
	const prefix = "gs://"
	if !strings.HasPrefix(sourceURL, prefix) {
		return nil, fmt.Errorf("manifest: %q is not a gs:// URL", sourceURL)
	}
	rest := strings.TrimPrefix(sourceURL, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("manifest: %q must be gs://bucket/object", sourceURL)
	}
	return &GCSSource{bucket: parts[0], object: parts[1], downloader: downloader}, nil
}

func (s *GCSSource) Fetch(ctx context.Context) (string, error) {
	body, err := s.downloader.Download(ctx, s.bucket, s.object)
	if err != nil {
		return "", httpAsSourceError("gs://"+s.bucket+"/"+s.object, err)
	}
	return string(body), nil
}

// NewSource selects HTTPSource or GCSSource based on sourceURL's
// scheme, per the manifest_source_url configuration knob.
func NewSource(sourceURL string, httpClient *http.Client, downloader ObjectDownloader) (Source, error) {
	if strings.HasPrefix(sourceURL, "gs://") {
		return NewGCSSource(sourceURL, downloader)
	}
	return NewHTTPSource(sourceURL, httpClient), nil
}
