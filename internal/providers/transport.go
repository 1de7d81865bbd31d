package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yubzen/globetrip/internal/redact"
)

const errorBodyLimit = 512

// StatusError is a non-200 answer from a provider API. Body is scrubbed of
// secrets and truncated.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: %s (status %d)", e.Provider, e.Body, e.StatusCode)
}

func credentialFor(name string) (string, error) {
	key, err := LoadCredential(name)
	if err != nil || strings.TrimSpace(key) == "" {
		return "", authError(name)
	}
	return strings.TrimSpace(key), nil
}

// doJSON sends in (when non-nil) as a JSON body and decodes a 200 answer into
// out. 401 and 403 become a ProviderAuthError.
func doJSON(ctx context.Context, client *http.Client, provider, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s encode: %w", provider, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %s", provider, redact.Clean(err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &ProviderAuthError{ProviderName: provider, Msg: "Unauthorized: invalid API key for " + provider}
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       redact.Clean(strings.TrimSpace(string(raw))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", provider, err)
	}
	return nil
}
