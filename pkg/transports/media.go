package transports

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/harunnryd/sprachbot/pkg/errorsx"
)

// ErrMediaFetch marks a failed attachment download.
var ErrMediaFetch = errors.New("media fetch failed")

// DefaultMaxMediaBytes bounds inbound downloads.
const DefaultMaxMediaBytes = 16 << 20

// FetchOptions controls FetchMedia.
type FetchOptions struct {
	Client   *http.Client
	MaxBytes int
	// Username and Password enable basic auth on http(s) downloads.
	Username string
	Password string
}

// FetchMedia resolves an inbound attachment to its bytes. Attachments that
// already carry Data are returned as is.
func FetchMedia(ctx context.Context, att Attachment, opts FetchOptions) ([]byte, error) {
	if len(att.Data) > 0 {
		return att.Data, nil
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxMediaBytes
	}
	if strings.HasPrefix(att.URL, "data:") {
		data, _, err := DecodeDataURL(att.URL)
		if err != nil {
			return nil, mediaErr(err)
		}
		if len(data) > opts.MaxBytes {
			return nil, mediaErr(fmt.Errorf("attachment exceeds %d bytes", opts.MaxBytes))
		}
		return data, nil
	}
	u, err := url.Parse(att.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, mediaErr(fmt.Errorf("unsupported attachment url %q", att.URL))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, mediaErr(err)
	}
	if opts.Username != "" {
		req.SetBasicAuth(opts.Username, opts.Password)
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, mediaErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mediaErr(fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(opts.MaxBytes)+1))
	if err != nil {
		return nil, mediaErr(err)
	}
	if len(data) > opts.MaxBytes {
		return nil, mediaErr(fmt.Errorf("attachment exceeds %d bytes", opts.MaxBytes))
	}
	return data, nil
}

// EncodeDataURL renders data as a base64 data: URL.
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL parses a data: URL and returns its payload and media type.
func DecodeDataURL(raw string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, "", errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data url without payload")
	}
	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta, isBase64 = m, true
	}
	contentType := "text/plain"
	if meta != "" {
		mt, _, err := mime.ParseMediaType(meta)
		if err != nil {
			return nil, "", err
		}
		contentType = mt
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", err
		}
		return data, contentType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", err
	}
	return []byte(text), contentType, nil
}

func mediaErr(cause error) error {
	return errorsx.Wrap(fmt.Errorf("%w: %w", ErrMediaFetch, cause), errorsx.ReasonMediaFetch)
}
