package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultAzureAPIVersion = "2024-02-15-preview"

// AzureOpenAIProvider implements Provider against an Azure OpenAI
// deployment (chat completions, functions dialect).
type AzureOpenAIProvider struct {
	endpoint   string // https://<resource>.openai.azure.com
	deployment string
	apiVersion string
	apiKey     string // test override; empty = read AZURE_OPENAI_KEY per request
	model      string // reported model name; Azure routes by deployment
	client     *http.Client
	retry      RetryConfig
}

// NewAzureOpenAIProvider builds a provider for one deployment. The API key
// is read from AZURE_OPENAI_KEY at request time so rotated secrets take
// effect without a restart.
func NewAzureOpenAIProvider(endpoint, deployment string, opts ...AzureOption) *AzureOpenAIProvider {
	p := &AzureOpenAIProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: defaultAzureAPIVersion,
		model:      deployment,
		client:     &http.Client{Timeout: 300 * time.Second},
		retry:      DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type AzureOption func(*AzureOpenAIProvider)

func WithAzureAPIVersion(v string) AzureOption {
	return func(p *AzureOpenAIProvider) {
		if v != "" {
			p.apiVersion = v
		}
	}
}

func WithAzureModel(model string) AzureOption {
	return func(p *AzureOpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithAzureAPIKey pins the key instead of reading the environment.
// Intended for tests.
func WithAzureAPIKey(key string) AzureOption {
	return func(p *AzureOpenAIProvider) { p.apiKey = key }
}

func WithAzureHTTPClient(c *http.Client) AzureOption {
	return func(p *AzureOpenAIProvider) {
		if c != nil {
			p.client = c
		}
	}
}

func (p *AzureOpenAIProvider) Name() string      { return "azure-openai" }
func (p *AzureOpenAIProvider) ModelName() string { return p.model }

func (p *AzureOpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := p.buildRequestBody(req)

	return RetryDo(ctx, p.retry, func() (*ChatResponse, error) {
		respBody, err := p.doRequest(ctx, body)
		if err != nil {
			return nil, err
		}
		defer respBody.Close()

		var resp azureChatResponse
		if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
			return nil, fmt.Errorf("azure-openai: decode response: %w", err)
		}
		return p.parseResponse(&resp)
	})
}

func (p *AzureOpenAIProvider) buildRequestBody(req ChatRequest) map[string]interface{} {
	// Convert to the OpenAI wire format: tool_calls carry a type+function
	// wrapper and arguments travel as a JSON string.
	msgs := make([]map[string]interface{}, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := map[string]interface{}{"role": m.Role}

		// Assistant messages with tool_calls may legitimately have no text.
		if m.Content != "" || len(m.ToolCalls) == 0 {
			msg["content"] = m.Content
		}

		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]interface{}, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				args := tc.Arguments
				if args == "" {
					args = "{}"
				}
				calls[i] = map[string]interface{}{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      tc.Name,
						"arguments": args,
					},
				}
			}
			msg["tool_calls"] = calls
		}

		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}

		msgs = append(msgs, msg)
	}

	body := map[string]interface{}{
		"messages": msgs,
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.InputSchema,
				},
			}
		}
		body["tools"] = tools
		body["tool_choice"] = "auto"
	}

	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	return body
}

func (p *AzureOpenAIProvider) doRequest(ctx context.Context, body interface{}) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("azure-openai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("azure-openai: create request: %w", err)
	}

	key := p.apiKey
	if key == "" {
		key = os.Getenv("AZURE_OPENAI_KEY")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", key)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure-openai: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			Body:       "azure-openai: " + truncateBody(respBody),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return resp.Body, nil
}

func (p *AzureOpenAIProvider) parseResponse(resp *azureChatResponse) (*ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, &HTTPError{Status: 200, Body: "azure-openai: response carried no choices"}
	}

	msg := resp.Choices[0].Message
	result := &ChatResponse{Content: msg.Content}

	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      strings.TrimSpace(tc.Function.Name),
			Arguments: tc.Function.Arguments,
		})
	}

	result.AssistantMessage = assistantMessage(msg.Content, result.ToolCalls)

	if resp.Usage != nil {
		result.Usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result, nil
}

// --- Azure OpenAI wire types ---

type azureChatResponse struct {
	Choices []struct {
		Message      azureChatMessage `json:"message"`
		FinishReason string           `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type azureChatMessage struct {
	Content   string `json:"content"`
	ToolCalls []struct {
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}
