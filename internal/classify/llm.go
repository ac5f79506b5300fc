package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ppiankov/communitysurf/internal/post"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	httpTimeout     = 30 * time.Second
	systemPrompt    = "You analyze and classify community posts about developer tools."
)

// LLM sends post text to an OpenAI-compatible chat API for
// classification. Falls back to the provided classifier on any error.
type LLM struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string
	fallback  Classifier
	client    *http.Client
	log       *slog.Logger
}

// NewLLM creates an LLM classifier with a fallback. An empty endpoint
// means the OpenAI API.
func NewLLM(apiKey, model, endpoint string, maxTokens int, fallback Classifier, log *slog.Logger) *LLM {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLM{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  endpoint,
		fallback:  fallback,
		client:    &http.Client{Timeout: httpTimeout},
		log:       log,
	}
}

func (l *LLM) Classify(ctx context.Context, p post.Post) []string {
	tags, err := l.callAPI(ctx, prompt(p))
	if err != nil {
		l.log.Warn("llm classify failed, using fallback", "post", p.Key(), "error", err)
		return l.fallbackTags(ctx, p)
	}
	if len(tags) == 0 {
		return l.fallbackTags(ctx, p)
	}
	return tags
}

func (l *LLM) fallbackTags(ctx context.Context, p post.Post) []string {
	if l.fallback == nil {
		return nil
	}
	return l.fallback.Classify(ctx, p)
}

func prompt(p post.Post) string {
	var b strings.Builder
	b.WriteString("Classify the post into one or more of these categories:\n")
	for _, tag := range post.Classifications {
		b.WriteString("- " + tag + "\n")
	}
	b.WriteString("\nPost title: " + p.Title + "\n")
	b.WriteString("Post content: " + p.Content + "\n\n")
	b.WriteString(`Respond with a JSON array of category strings, most relevant first, e.g. ["bug_issue", "frustration"]. Only include categories that clearly apply.`)
	return b.String()
}

func (l *LLM) callAPI(ctx context.Context, text string) ([]string, error) {
	reqBody := chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens:   l.maxTokens,
		Temperature: 0.1,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, errors.New("empty choices in response")
	}

	return parseTags(chatResp.Choices[0].Message.Content), nil
}

// parseTags extracts the first JSON array from LLM output and keeps the
// known classifications in order.
func parseTags(content string) []string {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end < start {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil
	}
	var tags []string
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if post.IsClassification(tag) && !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
