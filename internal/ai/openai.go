package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIReviewer implements Reviewer using the OpenAI REST API.
type OpenAIReviewer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates an OpenAIReviewer from cfg.
func NewOpenAI(cfg config.AIConfig) (*OpenAIReviewer, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenAI base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid OpenAI base URL scheme %q", u.Scheme)
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIReviewer{
		apiKey:  cfg.OpenAIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAIReviewer) Name() string { return "openai" }

func (o *OpenAIReviewer) IsAvailable(ctx context.Context) bool {
	if o.apiKey == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ReviewManifest asks the model for a structured risk review of one manifest.
// A response that is not the expected JSON shape is an error for the caller
// to surface as a scan warning, never a crash.
func (o *OpenAIReviewer) ReviewManifest(ctx context.Context, file models.ManifestFile) (*models.ManifestReview, error) {
	prompt := fmt.Sprintf(`You are a security engineer reviewing a dependency manifest.

FILE: %s (%s ecosystem)

%s

Assess the declared dependencies for security risk. Return a JSON object with:
- "summary": 2-3 sentence overall assessment
- "high_risk_items": array of strings, one per dependency with serious known issues
- "medium_risk_items": array of strings for moderate concerns
- "low_risk_items": array of strings for minor or housekeeping items

Respond ONLY with valid JSON, no markdown code blocks.`,
		file.Name, file.Ecosystem, file.Content)

	resp, err := o.complete(ctx, prompt, 1024)
	if err != nil {
		return nil, err
	}

	var review models.ManifestReview
	if err := json.Unmarshal([]byte(resp), &review); err != nil {
		return nil, fmt.Errorf("unexpected reviewer output shape: %w", err)
	}
	return &review, nil
}

// --- Internal ---

type openAIRequest struct {
	Model     string      `json:"model"`
	Messages  []openAIMsg `json:"messages"`
	MaxTokens int         `json:"max_tokens,omitempty"`
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAIReviewer) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload := openAIRequest{
		Model: o.model,
		Messages: []openAIMsg{
			{Role: "system", Content: "You are an expert security engineer reviewing dependency manifests."},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	const maxAttempts = 4
	var respBody []byte
	var respStatus int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			o.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("calling OpenAI API: %w", err)
		}
		respStatus = resp.StatusCode
		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("reading response body: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			break
		}
		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
			slog.Warn("OpenAI rate limited; retrying",
				"attempt", attempt, "max_attempts", maxAttempts, "wait", wait.String())
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
			continue
		}
		break
	}

	if respStatus != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error %d: %s", respStatus, string(respBody))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("OpenAI error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

func retryDelay(retryAfterHeader string, attempt int) time.Duration {
	if ra := strings.TrimSpace(retryAfterHeader); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	d := time.Duration(attempt*attempt) * 500 * time.Millisecond
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
