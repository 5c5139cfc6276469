package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient is the default Client, backed by net/http. A single instance
// is safe for concurrent use.
type HTTPClient struct {
	Timeout time.Duration
	client  *http.Client
}

// NewHTTPClient builds an HTTPClient with the given timeout. A zero timeout
// means no timeout is applied beyond the request context's deadline.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{Timeout: timeout, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) Do(ctx context.Context, req Request) (Response, error) {
	client := c.client
	if req.ProxyHost != "" {
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", req.ProxyHost, req.ProxyPort),
		}
		if req.ProxyUser != "" {
			proxyURL.User = url.UserPassword(req.ProxyUser, req.ProxyPass)
		}
		transport := &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		client = &http.Client{Timeout: c.Timeout, Transport: transport}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, err
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: k, Value: v})
	}
	if req.BasicAuthUser != "" {
		httpReq.SetBasicAuth(req.BasicAuthUser, req.BasicAuthPass)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Status:  resp.StatusCode,
		Content: content,
		Header:  resp.Header,
	}, nil
}
