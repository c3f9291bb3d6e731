package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SvBorde/ResumeBooster/internal/metrics"
)

// ErrUpstream marks any failure of the external completion service: transport
// errors, non-success statuses, or a response that does not match the
// requested JSON shape.
var ErrUpstream = errors.New("llm service failure")

const defaultTimeout = 60 * time.Second

// Config configures the chat-completion client.
// APIURL may be overridden in tests to point at a fake server.
type Config struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-style chat-completions endpoint and parses the
// structured JSON results this service asks for.
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a Client, applying the default timeout when unset.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analysis is the parsed skill-match result. The split technical/
// qualification lists come straight from the model; MatchedSkills and
// MissingSkills are the merged views the API contract promises.
type Analysis struct {
	MatchPercentage        float64  `json:"match_percentage"`
	MatchedTechnicalSkills []string `json:"matched_technical_skills,omitempty"`
	MatchedQualifications  []string `json:"matched_qualifications,omitempty"`
	MissingTechnicalSkills []string `json:"missing_technical_skills,omitempty"`
	MissingQualifications  []string `json:"missing_qualifications,omitempty"`
	MatchedSkills          []string `json:"matched_skills"`
	MissingSkills          []string `json:"missing_skills"`
}

// Enhancement is the parsed rewrite result.
type Enhancement struct {
	EnhancedContent string   `json:"enhanced_content"`
	ChangesMade     []string `json:"changes_made,omitempty"`
	HTMLPreview     string   `json:"html_preview,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzeJobDescription asks the model how well the resume matches the job
// description and returns the parsed analysis.
func (c *Client) AnalyzeJobDescription(ctx context.Context, resumeContent, jobDescription string) (*Analysis, error) {
	start := time.Now()
	analysis, err := c.analyze(ctx, resumeContent, jobDescription)
	metrics.ObserveLLMRequest("analyze", time.Since(start), err)
	return analysis, err
}

func (c *Client) analyze(ctx context.Context, resumeContent, jobDescription string) (*Analysis, error) {
	content, err := c.complete(ctx, analyzePrompt(resumeContent, jobDescription))
	if err != nil {
		return nil, err
	}

	// *float64 distinguishes a missing key from an explicit zero.
	var raw struct {
		MatchPercentage        *float64 `json:"match_percentage"`
		MatchedTechnicalSkills []string `json:"matched_technical_skills"`
		MatchedQualifications  []string `json:"matched_qualifications"`
		MissingTechnicalSkills []string `json:"missing_technical_skills"`
		MissingQualifications  []string `json:"missing_qualifications"`
		MatchedSkills          []string `json:"matched_skills"`
		MissingSkills          []string `json:"missing_skills"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: parse analysis: %v", ErrUpstream, err)
	}
	if raw.MatchPercentage == nil {
		return nil, fmt.Errorf("%w: analysis missing match_percentage", ErrUpstream)
	}

	analysis := &Analysis{
		MatchPercentage:        *raw.MatchPercentage,
		MatchedTechnicalSkills: raw.MatchedTechnicalSkills,
		MatchedQualifications:  raw.MatchedQualifications,
		MissingTechnicalSkills: raw.MissingTechnicalSkills,
		MissingQualifications:  raw.MissingQualifications,
		MatchedSkills:          raw.MatchedSkills,
		MissingSkills:          raw.MissingSkills,
	}

	// Newer prompts split technical skills from qualifications; merge them
	// back so matched_skills/missing_skills stay the stable contract.
	if len(raw.MatchedTechnicalSkills) > 0 || len(raw.MatchedQualifications) > 0 {
		analysis.MatchedSkills = append(append([]string{}, raw.MatchedTechnicalSkills...), raw.MatchedQualifications...)
	}
	if len(raw.MissingTechnicalSkills) > 0 || len(raw.MissingQualifications) > 0 {
		analysis.MissingSkills = append(append([]string{}, raw.MissingTechnicalSkills...), raw.MissingQualifications...)
	}
	if analysis.MatchedSkills == nil {
		analysis.MatchedSkills = []string{}
	}
	if analysis.MissingSkills == nil {
		analysis.MissingSkills = []string{}
	}

	return analysis, nil
}

// EnhanceResume asks the model to rewrite the resume incorporating the given
// skills and returns the parsed rewrite.
func (c *Client) EnhanceResume(ctx context.Context, resumeContent string, skills []string) (*Enhancement, error) {
	start := time.Now()
	enhancement, err := c.enhance(ctx, resumeContent, skills)
	metrics.ObserveLLMRequest("enhance", time.Since(start), err)
	return enhancement, err
}

func (c *Client) enhance(ctx context.Context, resumeContent string, skills []string) (*Enhancement, error) {
	content, err := c.complete(ctx, enhancePrompt(resumeContent, skills))
	if err != nil {
		return nil, err
	}

	var enhancement Enhancement
	if err := json.Unmarshal([]byte(stripFences(content)), &enhancement); err != nil {
		return nil, fmt.Errorf("%w: parse enhancement: %v", ErrUpstream, err)
	}
	if enhancement.EnhancedContent == "" {
		return nil, fmt.Errorf("%w: enhancement missing enhanced_content", ErrUpstream)
	}

	return &enhancement, nil
}

// complete sends one user message and returns the first choice's content.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0.7,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", ErrUpstream, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: chat response has no choices", ErrUpstream)
	}

	return chat.Choices[0].Message.Content, nil
}

// stripFences removes markdown code fences some models wrap around JSON even
// in structured-output mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
