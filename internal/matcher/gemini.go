package matcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"tarareo.app/internal/audio"
)

// GeminiClient identifies songs with the Gemini API. One request per Match
// call, no retries; the orchestrator decides what a failure means.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed matcher.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// responseSchema pins the reply to a JSON array of candidate objects so the
// model cannot wander into prose.
var responseSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":          {Type: genai.TypeString},
			"title":       {Type: genai.TypeString},
			"artist":      {Type: genai.TypeString},
			"matchType":   {Type: genai.TypeString},
			"confidence":  {Type: genai.TypeNumber},
			"description": {Type: genai.TypeString},
		},
		Required: []string{"id", "title", "artist", "matchType"},
	},
}

// Match implements Matcher.
func (c *GeminiClient) Match(ctx context.Context, req Request) ([]Record, error) {
	var parts []*genai.Part

	if req.Audio != nil && !req.Audio.Empty() {
		raw, err := base64.StdEncoding.DecodeString(req.Audio.Data)
		if err != nil {
			return nil, fmt.Errorf("decode audio payload: %w", err)
		}
		mimeType := req.Audio.MIMEType
		if mimeType == "" {
			mimeType = audio.MIMETypeOgg
		}
		parts = append(parts, genai.NewPartFromBytes(raw, mimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Instruction))

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
		Temperature:      genai.Ptr[float32](0.4),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, errors.New("empty response from model")
	}

	var records []Record
	if err := json.Unmarshal([]byte(text), &records); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return records, nil
}
