package myhttpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/MarcGrol/bookingportal/lib/mylog"
)

const (
	defaultTimeout      = 10 * time.Second
	consecutiveFailures = 5
	openStateTimeout    = 30 * time.Second
)

type response struct {
	status int
	body   []byte
}

type jsonHTTPClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	logger  mylog.Logger
}

// NewJSONHTTPClient returns a sender that stops calling a remote that keeps failing.
// Only transport errors and 5xx responses count as failures.
func NewJSONHTTPClient(name string, timeout time.Duration) HTTPSender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := mylog.New("httpclient")
	return &jsonHTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
			Name:    name,
			Timeout: openStateTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Log(context.Background(), name, mylog.SeverityWarn, "Circuit-breaker %s: %s -> %s", name, from, to)
			},
		}),
		logger: logger,
	}
}

func (c *jsonHTTPClient) Send(ctx context.Context, method string, url string, bearerToken string, body []byte) (int, []byte, error) {
	var serverError *serverErrorResponse
	resp, err := c.breaker.Execute(func() (response, error) {
		resp, err := c.do(ctx, method, url, bearerToken, body)
		if err != nil {
			return response{}, err
		}
		if resp.status >= http.StatusInternalServerError {
			serverError = &serverErrorResponse{resp: resp}
			return resp, serverError
		}
		return resp, nil
	})
	if serverError != nil {
		// a 5xx is a valid answer for the caller, it only counts as failure for the breaker
		return serverError.resp.status, serverError.resp.body, nil
	}
	if err != nil {
		return 0, []byte{}, err
	}

	return resp.status, resp.body, nil
}

func (c *jsonHTTPClient) do(ctx context.Context, method string, url string, bearerToken string, body []byte) (response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return response{}, fmt.Errorf("error creating http request for %s %s: %s", method, url, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	c.logger.Log(ctx, "", mylog.SeverityDebug, "HTTP request: %s %s", method, url)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return response{}, fmt.Errorf("error sending %s %s: %s", method, url, err)
	}
	defer httpResp.Body.Close()

	respPayload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response{}, fmt.Errorf("error reading response %s %s: %s", method, url, err)
	}

	c.logger.Log(ctx, "", mylog.SeverityDebug, "HTTP response: %s %s -> %d", method, url, httpResp.StatusCode)

	return response{status: httpResp.StatusCode, body: respPayload}, nil
}

type serverErrorResponse struct {
	resp response
}

func (e *serverErrorResponse) Error() string {
	return fmt.Sprintf("server error %d", e.resp.status)
}
