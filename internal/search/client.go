// Package search wraps the SearchAPI.io engines globetrip uses as its
// deterministic data sources: Google Flights, the Google Flights calendar,
// Google Hotels and Airbnb.
//
// Calls never return Go errors. Configuration, transport and decoding
// problems are reported through Outcome so callers can hand them to agents
// and logs unchanged.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yubzen/globetrip/internal/logging"
	"github.com/yubzen/globetrip/internal/providers"
	"github.com/yubzen/globetrip/internal/redact"
)

const (
	DefaultBaseURL = "https://www.searchapi.io/api/v1/search"
	DefaultTimeout = 15 * time.Second

	// APIKeyEnv takes precedence over the stored "searchapi" credential.
	APIKeyEnv     = "SEARCHAPI_IO_API_KEY"
	credentialKey = "searchapi"

	previewLen = 200
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	ReasonMissingConfiguration = "missing_configuration"
	ReasonRequestFailed        = "request_failed"
	ReasonNon200               = "non_200"
	ReasonInvalidJSON          = "invalid_json"
)

// Outcome is the status block shared by every search response.
type Outcome struct {
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Detail      string `json:"detail,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	BodyPreview string `json:"body_preview,omitempty"`
}

func (o Outcome) OK() bool { return o.Status == StatusSuccess }

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Currency string
	// HotelEngine forces google_hotels or airbnb for every stay search.
	HotelEngine string
}

type Client struct {
	baseURL     string
	currency    string
	hotelEngine string
	http        *http.Client
	logger      *slog.Logger
	apiKey      func() string
	now         func() time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithAPIKey(fn func() string) Option {
	return func(cl *Client) { cl.apiKey = fn }
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{
		baseURL:     cfg.BaseURL,
		currency:    strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		hotelEngine: strings.TrimSpace(cfg.HotelEngine),
		http:        &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		apiKey:      storedAPIKey,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// storedAPIKey resolves the key through the credential chain, where
// APIKeyEnv wins over the keyring.
func storedAPIKey() string {
	key, err := providers.LoadCredential(credentialKey)
	if err != nil {
		return ""
	}
	return key
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > previewLen {
		cut := previewLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return redact.Clean(s)
}

// get runs one engine query and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, engine string, params url.Values, out any) Outcome {
	log := c.logger.With("engine", engine)

	key := c.apiKey()
	if key == "" {
		log.Warn("search api key missing", "env", APIKeyEnv)
		return Outcome{
			Status: StatusError,
			Reason: ReasonMissingConfiguration,
			Detail: APIKeyEnv + " must be set or a searchapi credential stored.",
		}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Outcome{Status: StatusError, Reason: ReasonMissingConfiguration, Detail: fmt.Sprintf("invalid base url: %v", err)}
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("engine", engine)
	q.Set("api_key", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Outcome{Status: StatusError, Reason: ReasonRequestFailed, Detail: redact.Clean(err.Error())}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("search request failed", "url", redact.URL(u), "error", err)
		return Outcome{Status: StatusError, Reason: ReasonRequestFailed, Detail: redact.Clean(err.Error())}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("search response read failed", "error", err)
		return Outcome{Status: StatusError, Reason: ReasonRequestFailed, Detail: redact.Clean(err.Error())}
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn("search non-200 response", "status_code", resp.StatusCode, "text_preview", preview(body))
		return Outcome{Status: StatusError, Reason: ReasonNon200, StatusCode: resp.StatusCode, BodyPreview: preview(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Warn("search invalid JSON response", "text_preview", preview(body))
		return Outcome{Status: StatusError, Reason: ReasonInvalidJSON, BodyPreview: preview(body)}
	}

	log.Debug("search completed", "elapsed", time.Since(start))
	return Outcome{Status: StatusSuccess}
}

func setInt(params url.Values, key string, v int) {
	if v > 0 {
		params.Set(key, fmt.Sprint(v))
	}
}

func setString(params url.Values, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		params.Set(key, v)
	}
}

func (c *Client) currencyOr(q string) string {
	if q = strings.ToUpper(strings.TrimSpace(q)); q != "" {
		return q
	}
	return c.currency
}
