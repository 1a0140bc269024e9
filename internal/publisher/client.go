package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"
)

// apiCall is one HTTP request. The body is kept as bytes so a retry can
// resend it.
type apiCall struct {
	method      string
	url         string
	header      http.Header
	body        []byte
	contentType string
}

func jsonCall(method, endpoint string, payload any) (*apiCall, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return &apiCall{method: method, url: endpoint, body: body, contentType: "application/json; charset=UTF-8", header: http.Header{}}, nil
}

func formCall(method, endpoint string, form url.Values) *apiCall {
	return &apiCall{method: method, url: endpoint, body: []byte(form.Encode()), contentType: "application/x-www-form-urlencoded", header: http.Header{}}
}

func getCall(endpoint string) *apiCall {
	return &apiCall{method: http.MethodGet, url: endpoint, header: http.Header{}}
}

func (c *apiCall) bearer(token string) *apiCall {
	c.header.Set("Authorization", "Bearer "+token)
	return c
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

// errorDecoder turns a non-2xx platform response into a classified error.
// It returns nil when the body is not in the platform's error format.
type errorDecoder func(status int, body []byte) *Error

type apiClient struct {
	http      *http.Client
	decodeErr errorDecoder
}

// do sends the call and decodes a 2xx body into out when out is non-nil.
// Non-2xx responses become a classified *Error.
func (c *apiClient) do(ctx context.Context, call *apiCall, out any) (*apiResponse, error) {
	var body io.Reader
	if call.body != nil {
		body = bytes.NewReader(call.body)
	}
	req, err := http.NewRequestWithContext(ctx, call.method, call.url, body)
	if err != nil {
		return nil, permanent("build request: %v", err)
	}
	for k, v := range call.header {
		req.Header[k] = v
	}
	if call.contentType != "" {
		req.Header.Set("Content-Type", call.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(ctx, err)
	}
	res := &apiResponse{status: resp.StatusCode, header: resp.Header, body: data}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.decodeErr != nil {
			if perr := c.decodeErr(resp.StatusCode, data); perr != nil {
				return res, perr
			}
		}
		return res, statusError(resp.StatusCode, truncate(string(data), 300))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return res, permanent("decode response: %v", err)
		}
	}
	return res, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
