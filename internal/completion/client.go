package completion

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

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/metrics"
)

// Failure reasons carried in an upstream_generation error's details.
const (
	FailureTimeout      = "timeout"
	FailureRejected     = "rejected"
	FailureMalformed    = "malformed"
	FailureUnconfigured = "unconfigured"
)

const maxResponseBytes = 4 << 20

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the single call shape: system instructions, prior turns and
// the new user content.
type Request struct {
	Caller      string
	System      string
	Prior       []Message
	User        string
	Temperature *float64
}

// Completer is what synthesis and runtime depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	resolver *Resolver
	http     *http.Client
}

func NewClient(resolver *Resolver) *Client {
	// Timeouts are applied per call from the resolved provider.
	return &Client{resolver: resolver, http: &http.Client{}}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	p := c.resolver.Resolve(ctx)
	start := time.Now()
	text, err := c.call(ctx, p, req)

	outcome := "ok"
	if err != nil {
		outcome = Reason(err)
		logging.FromContext(ctx).Warn("completion call failed",
			zap.String("caller", req.Caller),
			zap.String("provider", p.Name),
			zap.Int("provider_version", p.Version),
			zap.String("reason", outcome),
			zap.Error(err))
	}
	metrics.RecordCompletion(req.Caller, outcome, time.Since(start))
	return text, err
}

func (c *Client) call(ctx context.Context, p Provider, req Request) (string, error) {
	if p.BaseURL == "" || p.Model == "" {
		return "", apperr.UpstreamGeneration(FailureUnconfigured, errors.New("no completion provider configured"))
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	messages := make([]Message, 0, len(req.Prior)+2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Prior...)
	messages = append(messages, Message{Role: "user", Content: req.User})

	b, err := json.Marshal(chatRequest{Model: p.Model, Messages: messages, Temperature: req.Temperature})
	if err != nil {
		return "", apperr.UpstreamGeneration(FailureMalformed, err)
	}

	url := strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", apperr.UpstreamGeneration(FailureRejected, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.UpstreamGeneration(FailureTimeout, err)
		}
		return "", apperr.UpstreamGeneration(FailureRejected, fmt.Errorf("completion request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.UpstreamGeneration(FailureTimeout, err)
		}
		return "", apperr.UpstreamGeneration(FailureMalformed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		return "", apperr.UpstreamGeneration(FailureRejected,
			fmt.Errorf("completion service returned %d: %s", resp.StatusCode, msg)).
			WithDetail("status", resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return "", apperr.UpstreamGeneration(FailureMalformed, errors.New("response is not JSON"))
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return "", apperr.UpstreamGeneration(FailureMalformed, errors.New("response has no content"))
	}
	return content.String(), nil
}

// Reason returns the failure reason of an upstream_generation error.
func Reason(err error) string {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindUpstreamGeneration {
		return "error"
	}
	if r, ok := e.Details["reason"].(string); ok {
		return r
	}
	return "error"
}
