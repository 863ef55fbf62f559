package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultMaxAssetBytes = 20 << 20

// AssetClient downloads card images. It does not share the login session.
// Bodies longer than MaxBytes are rejected with ErrTooLarge.
type AssetClient struct {
	MaxBytes int64

	http *resty.Client
}

func NewAssetClient(timeout time.Duration, userAgent string) *AssetClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &AssetClient{
		MaxBytes: DefaultMaxAssetBytes,
		http:     resty.New().SetTimeout(timeout).SetHeader("User-Agent", userAgent),
	}
}

func (a *AssetClient) FetchBytes(ctx context.Context, assetURL string) ([]byte, error) {
	resp, err := a.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(assetURL)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		discard(resp)
		return nil, fmt.Errorf("asset status %d", resp.StatusCode())
	}
	limit := a.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxAssetBytes
	}
	b, err := readLimited(resp, limit)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", assetURL, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("asset %s is empty", assetURL)
	}
	return b, nil
}

// readLimited reads an unparsed response body, failing once it exceeds limit.
func readLimited(resp *resty.Response, limit int64) ([]byte, error) {
	body := resp.RawBody()
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	b, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return b, nil
}

func discard(resp *resty.Response) {
	if body := resp.RawBody(); body != nil {
		_ = body.Close()
	}
}
