package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"pet-aging-server/modules/aging"
	"pet-aging-server/modules/common/config"
	"pet-aging-server/modules/common/model"
)

// Client - Gemini image generation client
type Client struct {
	genaiClient *genai.Client
	model       string
	fetcher     *http.Client
}

// NewClient - create Gemini client with request/connect timeouts applied
func NewClient(ctx context.Context) *Client {
	cfg := config.GetConfig()

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
		},
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		log.Printf("❌ [Gemini] Failed to create Genai client: %v", err)
		return nil
	}

	log.Printf("✅ [Gemini] Client initialized (model: %s)", cfg.GeminiModel)
	return &Client{
		genaiClient: genaiClient,
		model:       cfg.GeminiModel,
		fetcher:     httpClient,
	}
}

// Generate - single image-to-image generation attempt. Retry budgets are
// the caller's concern.
func (c *Client) Generate(ctx context.Context, prompt string, img *model.PreparedImage) ([]byte, error) {
	raw, err := img.Bytes()
	if err != nil {
		return nil, &aging.GenerationError{
			Reason:  aging.ReasonInvalidImage,
			Message: "prepared image payload is not valid base64",
			Err:     err,
		}
	}

	log.Printf("🎨 [Gemini] Generating image - model: %s, prompt: %s", c.model, truncateString(prompt, 50))

	content := &genai.Content{
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(raw, img.MimeType),
		},
	}

	result, err := c.genaiClient.Models.GenerateContent(
		ctx,
		c.model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{
				AspectRatio: "1:1",
			},
		},
	)
	if err != nil {
		if isRateLimited(err) {
			return nil, &aging.GenerationError{
				Reason:  aging.ReasonRateLimited,
				Message: "Gemini API rate limited",
				Err:     err,
			}
		}
		return nil, &aging.GenerationError{
			Reason:  aging.ReasonTransport,
			Message: "Gemini API request failed",
			Err:     err,
		}
	}

	return c.extractImage(ctx, result)
}

// extractImage walks the response for image data. Providers answer in
// several shapes, so each extractor is tried in order: inline bytes,
// then a data URI, then a fetchable URL.
func (c *Client) extractImage(ctx context.Context, result *genai.GenerateContentResponse) ([]byte, error) {
	if len(result.Candidates) == 0 {
		return nil, &aging.GenerationError{
			Reason:  aging.ReasonEmptyResponse,
			Message: "no candidates in response",
		}
	}

	candidate := result.Candidates[0]
	if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
		return nil, &aging.GenerationError{
			Reason:  aging.ReasonContentFilter,
			Message: fmt.Sprintf("generation stopped: %s", candidate.FinishReason),
		}
	}

	if candidate.Content == nil {
		return nil, &aging.GenerationError{
			Reason:  aging.ReasonEmptyResponse,
			Message: "candidate has no content",
		}
	}

	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			log.Printf("✅ [Gemini] Image extracted inline: %d bytes", len(part.InlineData.Data))
			return part.InlineData.Data, nil
		}

		text := strings.TrimSpace(part.Text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "data:image/") {
			data, err := decodeDataURI(text)
			if err != nil {
				log.Printf("⚠️  [Gemini] Failed to decode data URI: %v", err)
				continue
			}
			log.Printf("✅ [Gemini] Image extracted from data URI: %d bytes", len(data))
			return data, nil
		}

		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			data, err := c.fetchURL(ctx, text)
			if err != nil {
				log.Printf("⚠️  [Gemini] Failed to fetch image URL: %v", err)
				continue
			}
			log.Printf("✅ [Gemini] Image fetched from URL: %d bytes", len(data))
			return data, nil
		}
	}

	return nil, &aging.GenerationError{
		Reason:  aging.ReasonEmptyResponse,
		Message: "no image data in response",
	}
}

func decodeDataURI(uri string) ([]byte, error) {
	idx := strings.Index(uri, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(uri[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data URI payload is empty")
	}
	return data, nil
}

func (c *Client) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image URL returned empty body")
	}
	return data, nil
}

// isRateLimited - check for 429 rate limit errors
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(strings.ToLower(errStr), "rate limit") ||
		strings.Contains(strings.ToLower(errStr), "quota")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
