package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/usecase"
)

// SceneCount is how many pages a generated story has.
const SceneCount = 10

const writerSystem = "You write short illustrated stories for a general audience. Reply with a single JSON object and nothing else."

const repairSystem = "You are a helpful assistant that fixes JSON formatting issues."

const storyShape = `{
  "Prompt": "The original prompt",
  "Title": "The story title",
  "Scenes": ["Detailed scene 1 description", "..."],
  "Summaries": ["scene 1 story text", "..."]
}`

// storyJSON is the object the model is asked to produce.
type storyJSON struct {
	Prompt    string   `json:"Prompt"`
	Title     string   `json:"Title"`
	Scenes    []string `json:"Scenes"`
	Summaries []string `json:"Summaries"`
}

func draftPrompt(prompt, accessibility string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a comic book story title and %d scene descriptions based on the following prompt: %s\n\n", SceneCount, prompt)
	fmt.Fprintf(&b, "The output must be a JSON object with this structure:\n%s\n\n", storyShape)
	b.WriteString(`For each detailed scene description in "Scenes":
- Focus on clear, visually descriptive elements that can be depicted in a single image.
- Include relevant visual details about characters, setting and action.
- Keep the scenes part of one cohesive narrative arc.
- Keep it suitable for a general audience.
- Do not request copyrighted characters, logos, branded content or real people.
- Do not include violence, gore, hate speech or political imagery.

For each story text in "Summaries":
- Write 3 to 4 engaging, educational sentences for the scene.
`)
	if accessibility != "" {
		fmt.Fprintf(&b, "\nReaders have these accessibility needs; write so they can enjoy the story: %s\n", accessibility)
	}
	fmt.Fprintf(&b, "\nThere must be exactly %d scenes and %d summaries.", SceneCount, SceneCount)
	return b.String()
}

func repairPrompt(invalid string) string {
	return fmt.Sprintf(`The following text was supposed to be a valid JSON object, but it contains errors.
Fix it so it follows this structure:

%s

Make sure there are %d scenes and %d summaries.
Here is the invalid JSON:

%s

Reply with only the corrected JSON.`, storyShape, SceneCount, SceneCount, invalid)
}

// Draft asks the model for a story. A malformed reply gets one repair
// round trip before the draft is given up on.
func (c *Client) Draft(ctx context.Context, prompt, accessibility string) (*usecase.Draft, error) {
	raw, err := c.chat(ctx, "openai.Draft", writerSystem, draftPrompt(prompt, accessibility), true)
	if err != nil {
		return nil, err
	}

	story, perr := parseStory(raw)
	if perr != nil {
		c.logg.Warn("story draft is not valid JSON, repairing", "error", perr)

		fixed, err := c.chat(ctx, "openai.RepairDraft", repairSystem, repairPrompt(raw), true)
		if err != nil {
			return nil, err
		}
		if story, perr = parseStory(fixed); perr != nil {
			return nil, domain.Unavailable("openai.RepairDraft", perr)
		}
	}

	return &usecase.Draft{
		Title:     story.Title,
		Scenes:    story.Scenes,
		Summaries: story.Summaries,
	}, nil
}

// parseStory decodes and checks a model reply. Code fences around the
// object are tolerated.
func parseStory(raw string) (*storyJSON, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s storyJSON
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode story: %w", err)
	}

	switch {
	case strings.TrimSpace(s.Title) == "":
		return nil, fmt.Errorf("story has no title")
	case len(s.Scenes) == 0:
		return nil, fmt.Errorf("story has no scenes")
	case len(s.Scenes) != len(s.Summaries):
		return nil, fmt.Errorf("story has %d scenes but %d summaries", len(s.Scenes), len(s.Summaries))
	}
	return &s, nil
}
