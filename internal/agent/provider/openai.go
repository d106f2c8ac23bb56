package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/config"
)

// OpenAIProvider talks to an OpenAI-compatible chat-completions endpoint
type OpenAIProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      *log.Logger
}

// NewOpenAIProvider creates a provider from LLM configuration
func NewOpenAIProvider(cfg config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key not configured (set OPENAI_API_KEY)")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIProvider{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		logger:      log.New(os.Stdout, "[PROVIDER] ", log.LstdFlags),
	}, nil
}

// Wire types for the chat-completions API

type chatRequest struct {
	Model         string           `json:"model"`
	Messages      []requestMessage `json:"messages"`
	Tools         []requestTool    `json:"tools,omitempty"`
	ToolChoice    string           `json:"tool_choice,omitempty"`
	Temperature   float64          `json:"temperature"`
	MaxTokens     int              `json:"max_tokens,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
	StreamOptions *streamOptions   `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// requestMessage uses *string for Content so an assistant message that only
// carries tool calls serializes with a null content field.
type requestMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type requestTool struct {
	Type     string          `json:"type"`
	Function requestFunction `json:"function"`
}

type requestFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage     `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Role      string          `json:"role,omitempty"`
			Content   string          `json:"content,omitempty"`
			ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage    `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

func convertMessages(messages []ChatMessage) []requestMessage {
	out := make([]requestMessage, 0, len(messages))
	for _, msg := range messages {
		rm := requestMessage{
			Role:       msg.Role,
			Name:       msg.Name,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 && msg.Content == "" {
			rm.Content = nil
		} else {
			content := msg.Content
			rm.Content = &content
		}
		out = append(out, rm)
	}
	return out
}

func convertTools(tools []ToolSchema) []requestTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]requestTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, requestTool{
			Type: "function",
			Function: requestFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func (p *OpenAIProvider) buildRequest(messages []ChatMessage, tools []ToolSchema, stream bool) chatRequest {
	req := chatRequest{
		Model:       p.model,
		Messages:    convertMessages(messages),
		Tools:       convertTools(tools),
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Stream:      stream,
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	if stream {
		req.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return req
}

func (p *OpenAIProvider) post(ctx context.Context, body chatRequest, accept string) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// ChatCompletion performs a single non-streamed completion
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, messages []ChatMessage, tools []ToolSchema) (ModelResponse, error) {
	resp, err := p.post(ctx, p.buildRequest(messages, tools, false), "")
	if err != nil {
		return ModelResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Printf("chat completion failed: status %d", resp.StatusCode)
		return ModelResponse{}, fmt.Errorf("chat completion failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ModelResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return ModelResponse{}, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return ModelResponse{}, fmt.Errorf("no response choices returned")
	}

	choice := parsed.Choices[0]
	return ModelResponse{
		Message: ChatMessage{
			Role:      RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: choice.Message.ToolCalls,
		},
		FinishReason: choice.FinishReason,
		Usage:        parsed.Usage,
	}, nil
}

// ChatCompletionStream performs a streamed completion, emitting cumulative
// snapshots as fragments arrive
func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, messages []ChatMessage, tools []ToolSchema) (<-chan StreamSnapshot, error) {
	resp, err := p.post(ctx, p.buildRequest(messages, tools, true), "text/event-stream")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat completion failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	snapshots := make(chan StreamSnapshot)

	go func() {
		defer close(snapshots)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		acc := newToolCallAccumulator()
		var content strings.Builder
		var finishReason string
		var usage Usage

		emit := func(s StreamSnapshot) bool {
			select {
			case snapshots <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					break
				}
				p.logger.Printf("stream read error: %v", err)
				emit(StreamSnapshot{
					Content:   content.String(),
					ToolCalls: acc.toolCalls(),
					Err:       fmt.Errorf("error reading stream: %w", err),
				})
				return
			}

			data, done := parseSSELine(line)
			if done {
				break
			}
			if data == "" {
				continue
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip malformed fragments
				continue
			}
			if chunk.Error != nil {
				emit(StreamSnapshot{
					Content:   content.String(),
					ToolCalls: acc.toolCalls(),
					Err:       fmt.Errorf("provider error: %s", chunk.Error.Message),
				})
				return
			}

			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta
			changed := false
			if delta.Content != "" {
				content.WriteString(delta.Content)
				changed = true
			}
			for _, tc := range delta.ToolCalls {
				acc.addDelta(tc)
				changed = true
			}
			if fr := chunk.Choices[0].FinishReason; fr != nil && *fr != "" {
				finishReason = *fr
			}

			if changed {
				if !emit(StreamSnapshot{Content: content.String(), ToolCalls: acc.toolCalls()}) {
					return
				}
			}
		}

		emit(StreamSnapshot{
			Content:      content.String(),
			ToolCalls:    acc.toolCalls(),
			FinishReason: finishReason,
			Usage:        usage,
			Done:         true,
		})
	}()

	return snapshots, nil
}

// parseSSELine extracts the data payload of a server-sent-events line.
// The second return value reports the [DONE] sentinel.
func parseSSELine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "data: ") {
		return "", false
	}
	data := strings.TrimPrefix(line, "data: ")
	if data == "[DONE]" {
		return "", true
	}
	return data, false
}
