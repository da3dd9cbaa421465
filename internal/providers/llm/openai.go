package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/careerpath/internal/utils"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-3.5-turbo-0125"
)

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey  string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL string        // default https://api.openai.com/v1
	Model   string        // fixed for every call
	Timeout time.Duration // http client timeout, used when HTTPClient is nil

	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// OpenAI calls /chat/completions in JSON-object response mode.
type OpenAI struct {
	cfg  OpenAIConfig
	http *http.Client
	log  *logrus.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	l := cfg.Logger
	if l == nil {
		l = logrus.New()
	}
	return &OpenAI{cfg: cfg, http: hc, log: l}
}

func (c *OpenAI) Model() string { return c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Stream         bool              `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAI) Generate(ctx context.Context, system, user string) (string, error) {
	const op = "OpenAI.Generate"

	rid := uuid.NewString()
	start := time.Now()
	entry := c.log.WithFields(logrus.Fields{
		"req_id": rid,
		"model":  c.cfg.Model,
	})
	entry.WithField("user_len", len(user)).Debug("llm.generate.start")

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Stream:         false,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		cerr := classify(ctx, op, err)
		entry.WithFields(logrus.Fields{
			"error":      err.Error(),
			"error_kind": utils.KindOf(cerr),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Warn("llm.generate.failed")
		return "", cerr
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		entry.WithField("error", err.Error()).Error("llm.generate.decode_error")
		return "", utils.K(utils.KindGenerationUnavailable, op, "unreadable completion envelope", err)
	}
	if len(cc.Choices) == 0 {
		entry.Error("llm.generate.no_choices")
		return "", utils.K(utils.KindGenerationUnavailable, op, "completion has no choices", errors.New("no choices"))
	}
	if cc.Choices[0].FinishReason == "length" {
		entry.Warn("llm.generate.truncated")
	}

	content := cc.Choices[0].Message.Content
	entry.WithFields(logrus.Fields{
		"bytes":      len(content),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("llm.generate.ok")
	return content, nil
}

func (c *OpenAI) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.WithError(err).Warn("openai response body close error")
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
