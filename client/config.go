package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/ankit-chaubey/docsurgery/core"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, without the /api/v2 suffix.
	BaseURL string
	// Token is sent as "Authorization: <Scheme> <Token>".
	Token string
	// Scheme defaults to "Token".
	Scheme string
	// EnvironmentKey is sent as X-Origin-Environment.
	EnvironmentKey string
	// Timeout bounds each HTTP attempt. Default 20s.
	Timeout time.Duration
	// MaxRetries is how many times a failed request is retried.
	MaxRetries int
	// RetryInterval is the first backoff interval. Default 500ms.
	RetryInterval time.Duration
	// Workers bounds concurrent page fetches in ListPages.
	Workers int

	HTTPClient *http.Client
	Logger     hclog.Logger
}

const defaultRetryInterval = 500 * time.Millisecond

// ConfigFrom converts the api block of a surgery configuration.
func ConfigFrom(c *core.APIConfig, logger hclog.Logger) Config {
	return Config{
		BaseURL:        c.BaseURL,
		Token:          c.Token,
		Scheme:         c.Scheme,
		EnvironmentKey: c.EnvironmentKey,
		Timeout:        c.TimeoutDuration(),
		MaxRetries:     c.Retries(),
		Workers:        c.Workers,
		Logger:         logger,
	}
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Scheme == "" {
		c.Scheme = core.DefaultAPIScheme
	}
	if c.Timeout == 0 {
		c.Timeout = core.DefaultAPITimeout
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.Workers == 0 {
		c.Workers = core.DefaultAPIWorkers
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(isHTTPURL)),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(1)),
	)
}

func isHTTPURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
