// Package provider selects the LLM backend used for transcription
// correction.
package provider

import (
	"context"
	"errors"

	"github.com/kildespor/kildespor/config"
	openai_provider "github.com/kildespor/kildespor/provider/openai"
)

// Client names an LLM provider.
type Client string

const (
	OpenAI Client = "openai"
)

// Provider is the completion surface the correction step needs.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider builds the configured LLM client. A missing API key is not an
// error here: the caller decides whether correction is optional.
func NewProvider(client Client, cfg config.ProvidersConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("openai api key not set")
		}
		return openai_provider.NewClient(cfg.OpenAI), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
