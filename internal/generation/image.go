package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

const rewriteSystem = "You are a helpful assistant that rewrites image descriptions to avoid policy violations while keeping the essence of the original description."

func imagePrompt(scene, style, accessibility string) string {
	var b strings.Builder
	b.WriteString(scene)
	fmt.Fprintf(&b, " | Remove all dialogue/text in image. Use this artistic style for the image: %s.", style)
	if accessibility != "" {
		fmt.Fprintf(&b, " Viewers have these needs: %s. If any affect how they see, such as color blindness, make the image easy for them to view.", accessibility)
	}
	return b.String()
}

// Illustrate renders scene as a PNG. After a failed attempt the scene is
// rewritten by the chat model, since the usual cause is a content policy
// rejection.
func (c *Client) Illustrate(ctx context.Context, scene, style, accessibility string) ([]byte, error) {
	description := scene

	var png []byte
	operation := func() error {
		out, err := c.image(ctx, imagePrompt(description, style, accessibility))
		if err != nil {
			return classify(err)
		}
		png = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logg.Warn("image generation failed, rewriting scene", "error", err, "wait", wait)
		description = c.rewrite(ctx, description)
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		return nil, domain.Unavailable("openai.Illustrate", err)
	}
	return png, nil
}

// rewrite returns a policy-safe version of description, or description
// itself when the model cannot help.
func (c *Client) rewrite(ctx context.Context, description string) string {
	prompt := fmt.Sprintf("Please rewrite the following image description to avoid potential policy violations, while keeping the main idea intact: '%s'", description)

	out, err := c.chat(ctx, "openai.RewriteScene", rewriteSystem, prompt, false)
	if err != nil {
		c.logg.Warn("scene rewrite failed, keeping original", "error", err)
		return description
	}
	if out = strings.TrimSpace(out); out == "" {
		return description
	}
	return out
}
