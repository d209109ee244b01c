// Package generation drafts, illustrates and narrates stories with the
// OpenAI API.
//
// Every failure leaves this package as a *domain.Error of kind
// Unavailable. Calls are retried with exponential backoff up to the
// configured attempt count; callers above this layer never retry.
package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
)

// completer is the slice of the OpenAI client this package uses.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Client drafts story text, renders scene images and reads pages aloud.
type Client struct {
	api         completer
	chatModel   string
	imageModel  string
	speechModel string
	voice       string
	attempts    int
	newBackOff func() backoff.BackOff
	logg       *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithVoice sets the text-to-speech model and voice.
func WithVoice(model, voice string) Option {
	return func(c *Client) {
		c.speechModel = model
		c.voice = voice
	}
}

// WithBackOff overrides the delay policy between attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// New creates a Client from cfg.
func New(cfg *config.Config, logg *logger.Logger, opts ...Option) *Client {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: 2 * time.Minute}

	opts = append([]Option{WithVoice(cfg.OpenAISpeechModel, cfg.OpenAIVoice)}, opts...)
	return newClient(openai.NewClientWithConfig(oc), cfg.OpenAIChatModel, cfg.OpenAIImageModel, cfg.MaxRetries, logg, opts...)
}

func newClient(api completer, chatModel, imageModel string, attempts int, logg *logger.Logger, opts ...Option) *Client {
	if attempts < 1 {
		attempts = 1
	}
	c := &Client{
		api:         api,
		chatModel:   chatModel,
		imageModel:  imageModel,
		speechModel: string(openai.TTSModel1),
		voice:       string(openai.VoiceAlloy),
		attempts:    attempts,
		logg:        logg.WithFields("component", "openai"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// policy bounds the backoff to c.attempts tries in total and stops
// when ctx is done.
func (c *Client) policy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.attempts-1)), ctx)
}

// chat sends one system and one user message and returns the reply text.
func (c *Client) chat(ctx context.Context, op, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var content string
	operation := func() error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion has no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logg.Warn("chat completion failed, retrying", "op", op, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		return "", domain.Unavailable(op, err)
	}
	return content, nil
}

// image renders prompt and returns the decoded PNG.
func (c *Client) image(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("image response has no data")
	}

	png, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return png, nil
}

// classify marks errors that cannot succeed on retry as permanent.
// Rate limits and server errors stay retryable.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return backoff.Permanent(err)
		}
	}
	return err
}
