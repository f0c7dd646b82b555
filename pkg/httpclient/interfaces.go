package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	Post(ctx context.Context, url string, headers map[string]string, body any) (Response, error)
	// Download streams the response body into dest. The returned Response carries the
	// status code; its Body is only populated for non-2xx responses.
	Download(ctx context.Context, url string, headers map[string]string, dest string) (Response, error)
}
