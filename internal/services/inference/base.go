package inference

import (
	"context"
	"fmt"
	"time"

	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
)

// HTTPServiceBase is the shared transport of remote predictors.
type HTTPServiceBase struct {
	url    string
	client *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client posting to url.
func NewHTTPServiceBase(url string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPServiceBase{
		url:    url,
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts payload and decodes the JSON answer into dest.
// There is no retry: a failed call fails the forecast that issued it.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, payload interface{}, dest interface{}) error {
	if b.client == nil || b.url == "" {
		return fmt.Errorf("predictor http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.url,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", b.url, err)
	}
	return nil
}
