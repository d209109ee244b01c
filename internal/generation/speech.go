package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
)

// maxSpeechInput is the longest text the speech endpoint accepts.
const maxSpeechInput = 4096

// Narrate reads text aloud and returns the recording as MP3.
func (c *Client) Narrate(ctx context.Context, text string) ([]byte, error) {
	if len(text) > maxSpeechInput {
		return nil, domain.Unavailable("openai.Narrate", fmt.Errorf("page has %d characters, the limit is %d", len(text), maxSpeechInput))
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}

	var mp3 []byte
	operation := func() error {
		resp, err := c.api.CreateSpeech(ctx, req)
		if err != nil {
			return classify(err)
		}
		defer resp.Close()

		out, err := io.ReadAll(resp)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return errors.New("speech response is empty")
		}
		mp3 = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logg.Warn("speech generation failed, retrying", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		return nil, domain.Unavailable("openai.Narrate", err)
	}
	return mp3, nil
}
