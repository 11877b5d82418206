package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/korjavin/zahlbot/models"
)

const (
	deepseekAPIURL = "https://api.deepseek.com/v1/chat/completions"
	apiTimeoutSec  = 60
)

// DeepseekClient manages interactions with Deepseek API
type DeepseekClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewDeepseekClient creates a new Deepseek API client
func NewDeepseekClient(apiKey string) *DeepseekClient {
	return &DeepseekClient{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: apiTimeoutSec * time.Second,
		},
	}
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model    string            `json:"model"`
	Messages []deepseekMessage `json:"messages"`
}

type deepseekResponseChoice struct {
	Message deepseekMessage `json:"message"`
}

type deepseekResponse struct {
	Choices []deepseekResponseChoice `json:"choices"`
	ID      string                   `json:"id,omitempty"`
	Usage   map[string]interface{}   `json:"usage,omitempty"`
}

// GenerateNumber asks Deepseek for a numeric answer to a trivia question.
// The returned value is the model's raw integer; callers are expected to
// normalize it into the displayable range themselves.
func (c *DeepseekClient) GenerateNumber(ctx context.Context, question string) (int, error) {
	prompt := fmt.Sprintf(`Answer the following trivia question with a single integer of at most 4 digits.
Respond with the number only: no words, no units, no punctuation.

Question: %s`, question)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return 0, err
	}

	number, err := extractNumber(content)
	if err != nil {
		log.Printf("Could not extract a number from Deepseek response: %q", content)
		return 0, err
	}

	return number, nil
}

// GenerateQuestionNumberPairs asks Deepseek for count fresh trivia questions
// that have numeric answers, together with those answers.
func (c *DeepseekClient) GenerateQuestionNumberPairs(ctx context.Context, count int) ([]models.QAEntry, error) {
	prompt := fmt.Sprintf(`Produce %d distinct trivia questions that each have a numeric answer with at most 4 digits.
Respond with a JSON array only, no surrounding text, in this exact shape:
[{"question": "How many legs does a spider have?", "number": 8}]`, count)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var pairs []models.QAEntry
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &pairs); err != nil {
		log.Printf("Error parsing Deepseek pair list: %v", err)
		return nil, fmt.Errorf("failed to parse question list: %w", err)
	}

	return pairs, nil
}

// chat sends a single-message completion request and returns the content
// of the first choice.
func (c *DeepseekClient) chat(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()

	reqBody := deepseekRequest{
		Model: "deepseek-chat",
		Messages: []deepseekMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		log.Printf("Error marshaling request: %v", err)
		return "", err
	}

	// Log the request payload (truncated for clarity)
	reqJSONStr := string(reqJSON)
	if len(reqJSONStr) > 200 {
		log.Printf("Deepseek request payload (truncated): %s...", reqJSONStr[:200])
	} else {
		log.Printf("Deepseek request payload: %s", reqJSONStr)
	}

	// Apply the default timeout when the caller's context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, apiTimeoutSec*time.Second)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, "POST", deepseekAPIURL, bytes.NewBuffer(reqJSON))
	if err != nil {
		log.Printf("Error creating HTTP request: %v", err)
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	reqDuration := time.Since(startTime)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("Deepseek API request timed out after %v", reqDuration)
			return "", err
		}
		log.Printf("Error sending request to Deepseek: %v after %v", err, reqDuration)
		return "", err
	}
	defer resp.Body.Close()

	log.Printf("Received response from Deepseek API in %v with status code: %d", reqDuration, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Error reading response body: %v", err)
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("API request failed with status %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Log response (truncated for large responses)
	bodyStr := string(body)
	if len(bodyStr) > 300 {
		log.Printf("Deepseek response (truncated): %s...", bodyStr[:300])
	} else {
		log.Printf("Deepseek response: %s", bodyStr)
	}

	var deepseekResp deepseekResponse
	if err := json.Unmarshal(body, &deepseekResp); err != nil {
		log.Printf("Error parsing Deepseek response: %v", err)
		return "", err
	}

	if len(deepseekResp.Choices) == 0 {
		log.Printf("No choices in API response")
		return "", fmt.Errorf("no choices in API response")
	}

	return deepseekResp.Choices[0].Message.Content, nil
}

// extractNumber finds the first integer in the model's reply. Models mostly
// follow the number-only instruction, but some wrap the value in a sentence
// or add a thousands separator.
func extractNumber(content string) (int, error) {
	for _, field := range strings.Fields(content) {
		cleaned := strings.Trim(field, ".,;:!?\"'`")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if cleaned == "" {
			continue
		}
		if n, err := strconv.Atoi(cleaned); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("no integer found in response")
}

// stripCodeFence removes a markdown code fence around a JSON payload.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
