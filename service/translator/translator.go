package translator

import (
	"context"
	"strings"
	"time"

	"github.com/pwhiting/Translate/tools/errs"

	"github.com/go-resty/resty/v2"
)

type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

type Config struct {
	Provider string        `yaml:"provider" toml:"provider"` // google | ollama | echo
	APIKey   string        `yaml:"apiKey" toml:"api_key"`
	BaseURL  string        `yaml:"baseUrl" toml:"base_url"`
	Model    string        `yaml:"model" toml:"model"`
	Timeout  time.Duration `yaml:"timeout" toml:"timeout"`
}

func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "echo"
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	switch c.Provider {
	case "google":
		if c.APIKey == "" {
			return errs.ErrArgs.WrapMsg("google translator needs apiKey")
		}
	case "ollama":
		if c.Model == "" {
			return errs.ErrArgs.WrapMsg("ollama translator needs model")
		}
	case "echo":
	default:
		return errs.ErrArgs.WrapMsg("unknown translator provider", "provider", c.Provider)
	}
	return nil
}

func New(c Config) (Translator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	httpc := resty.New().SetTimeout(c.Timeout)
	switch c.Provider {
	case "google":
		return NewGoogle(httpc, c.APIKey, c.BaseURL), nil
	case "ollama":
		return NewOllama(httpc, c.BaseURL, c.Model), nil
	default:
		return Echo{}, nil
	}
}

// Echo tags text with the target language. It backs local runs without an API key.
type Echo struct{}

func (Echo) Translate(ctx context.Context, text, source, target string) (string, error) {
	return "[" + target + "] " + text, nil
}
