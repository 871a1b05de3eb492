package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

// UntitledStory is the title used when generation output cannot be parsed
const UntitledStory = "Untitled"

// DefaultPanelCount is the number of panels requested when none is configured
const DefaultPanelCount = 4

var validate = validator.New(validator.WithRequiredStructEnabled())

// BuildStoryPrompt builds the instruction sent to text generation models
func BuildStoryPrompt(prompt, language string, panelCount int) string {
	if panelCount <= 0 {
		panelCount = DefaultPanelCount
	}
	if language == "" {
		language = "en"
	}

	return fmt.Sprintf(`You are a comic book writer. Write a short comic based on the idea below.

IDEA:
%s

RULES:
1. The comic has exactly %d panels.
2. Write the title and every caption in the language identified by the tag %q.
3. Each visual_description describes the scene for an illustrator, in English, with enough detail to draw it without the other panels. Repeat the appearance of recurring characters in every description.
4. Each caption is one or two short sentences of narration or dialogue.

Respond ONLY with JSON in this exact format:
{"title": "...", "panels": [{"visual_description": "...", "caption": "..."}]}`, strings.TrimSpace(prompt), panelCount, language)
}

// StripCodeFence removes a surrounding markdown code fence such as ```json ... ```
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// drop the info string (json, JSON, ...) up to the first newline
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		if info := strings.TrimSpace(text[:i]); !strings.ContainsAny(info, "{[") {
			text = text[i+1:]
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseStory strictly decodes model output into a Story.
// Any failure is reported as a *GenerationParseError.
func ParseStory(raw string) (*models.Story, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, &GenerationParseError{Raw: raw, Err: errors.New("empty response")}
	}

	dec := json.NewDecoder(bytes.NewBufferString(text))
	dec.DisallowUnknownFields()

	var story models.Story
	if err := dec.Decode(&story); err != nil {
		return nil, &GenerationParseError{Raw: raw, Err: err}
	}
	if dec.More() {
		return nil, &GenerationParseError{Raw: raw, Err: errors.New("trailing data after JSON object")}
	}

	story.Title = strings.TrimSpace(story.Title)
	if err := validate.Struct(&story); err != nil {
		return nil, &GenerationParseError{Raw: raw, Err: err}
	}
	if story.Panels == nil {
		story.Panels = []models.StoryPanel{}
	}
	return &story, nil
}

// DegradeStory parses raw model output, falling back to an untitled story
// with no panels when the output is empty or does not match the schema.
// Callers must treat an empty panel list as a failed generation.
func DegradeStory(raw string) *models.Story {
	story, err := ParseStory(raw)
	if err != nil {
		var parseErr *GenerationParseError
		if errors.As(err, &parseErr) {
			slog.Warn("Story generation output could not be parsed", "err", parseErr.Err, "length", len(raw))
		}
		return &models.Story{Title: UntitledStory, Panels: []models.StoryPanel{}}
	}
	return story
}

// BuildImagePrompt builds the instruction for image generation, asking for
// likeness transfer when a reference image accompanies the request
func BuildImagePrompt(description string, withReference bool) string {
	prompt := fmt.Sprintf("Draw a single comic book panel in a vibrant, clean comic art style. No text, speech bubbles or lettering in the image.\n\nScene: %s", strings.TrimSpace(description))
	if withReference {
		prompt += "\n\nUse the attached reference image for the main character: keep their face, hair, build and clothing recognisably the same, redrawn in the comic style."
	}
	return prompt
}
