package embedding

import (
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig holds the credentials and endpoint of the OpenAI API.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client wraps the OpenAI client shared by embedding and chat callers.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. A missing API key is a configuration
// error.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	// Retries are handled by the callers' backoff policies.
	opts = append(opts, option.WithMaxRetries(0))

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (e.g., graph extraction).
func (c *Client) Client() *openai.Client {
	return c.client
}
