package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "communitysurf/1.0"
	maxBodyBytes = 8 << 20
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

// getJSON fetches rawURL and decodes the body into v. Numbers decode as
// json.Number when v is a map or interface.
func getJSON(ctx context.Context, client *http.Client, rawURL, name string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPStatusError{URL: rawURL, Status: resp.StatusCode, Message: errorBodyMessage(body)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &ParseError{Source: name, Err: err}
	}
	return nil
}

func errorBodyMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	switch e := payload.Error.(type) {
	case string:
		return e
	case nil:
		return ""
	}
	return "Server error occurred"
}

// asNetworkError normalizes a context expiry into a NetworkError so the
// coordinator reports timeouts uniformly.
func asNetworkError(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{URL: rawURL, Err: err}
	}
	return err
}
