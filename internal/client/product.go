// Package client holds HTTP clients for the services the review service
// depends on.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/utafrali/reviewrank/pkg/errors"
	"github.com/utafrali/reviewrank/pkg/httpclient"
)

const productServiceName = "product-service"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback turns an open circuit into a 503 instead of letting the
// raw breaker error propagate.
func CircuitOpenFallback(_ context.Context, err error) (*http.Response, error) {
	return nil, apperrors.Unavailable("product catalog is temporarily unavailable, please retry later", err)
}

// ProductClient checks the product catalog.
type ProductClient struct {
	doer    HTTPDoer
	baseURL string
}

// NewProductClient creates a client for the product service at baseURL.
func NewProductClient(doer HTTPDoer, baseURL string) *ProductClient {
	return &ProductClient{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Exists reports whether the catalog knows productID.
func (c *ProductClient) Exists(ctx context.Context, productID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create product request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return false, err
		}
		return false, apperrors.Unavailable("product catalog request failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return true, nil
	default:
		return false, httpclient.ParseResponseError(resp, productServiceName)
	}
}
