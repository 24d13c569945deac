// Package chat streams completions from a running llama-server over its
// OpenAI-compatible API and derives generation stats from the token stream.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llamadeskd/internal/genstats"
	"llamadeskd/pkg/types"
)

// Client talks to one llama-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the server at host:port.
// Timeout stays 0: streaming calls are bounded by the caller's context.
func NewClient(host string, port int) *Client {
	if host == "" {
		host = "127.0.0.1"
	}
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: 0},
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages []chatCompletionMessage `json:"messages"`
	Stream   bool                    `json:"stream"`
	// Ask the server to attach usage to the final stream chunk.
	StreamOptions struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Result is the outcome of one streamed completion.
type Result struct {
	Content string
	Stats   types.GenerationStats
}

// StreamChat posts the transcript and consumes the SSE response: "data:"
// frames carry JSON chunks, "data: [DONE]" ends the stream. Every delta is
// passed to onDelta and fed to the stats tracker; a usage frame overwrites the
// tracker's token estimate. Stats are always returned, including on error, so
// a cancelled or broken generation still gets its reason recorded.
func (c *Client) StreamChat(ctx context.Context, messages []types.ChatMessage, onDelta func(string) error) (Result, error) {
	tracker := genstats.NewTracker()
	tracker.Start()

	payload := chatCompletionRequest{Stream: true}
	payload.StreamOptions.IncludeUsage = true
	for _, m := range messages {
		payload.Messages = append(payload.Messages, chatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	body, _ := json.Marshal(payload)

	var content strings.Builder
	fail := func(reason string, err error) (Result, error) {
		stats, _ := tracker.Finalize(reason)
		return Result{Content: content.String(), Stats: stats}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fail(genstats.StopReasonConnError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fail(genstats.StopReasonCancelled, ctx.Err())
		}
		return fail(genstats.StopReasonConnError, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fail(genstats.StopReasonConnError, fmt.Errorf("llama server http error: %s: %s", resp.Status, string(b)))
	}

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			l := strings.TrimSpace(line)
			if l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
				data := strings.TrimSpace(l[len("data:"):])
				if data == "[DONE]" {
					break
				}
				var chunk chatStreamChunk
				if e := json.Unmarshal([]byte(data), &chunk); e == nil {
					if len(chunk.Choices) > 0 {
						frag := chunk.Choices[0].Delta.Content
						if frag != "" {
							content.WriteString(frag)
							tracker.AddDelta(frag)
							if onDelta != nil {
								if cbErr := onDelta(frag); cbErr != nil {
									return fail(genstats.StopReasonCancelled, cbErr)
								}
							}
						}
					}
					if chunk.Usage != nil {
						tracker.SetCompletionTokens(chunk.Usage.CompletionTokens)
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return fail(genstats.StopReasonCancelled, ctx.Err())
			}
			return fail(genstats.StopReasonConnError, err)
		}
	}

	stats, _ := tracker.Finalize("")
	return Result{Content: content.String(), Stats: stats}, nil
}

// AssistantMessage packages a finished generation as a persistable message.
func AssistantMessage(res Result) types.ChatMessage {
	stats := res.Stats
	return types.ChatMessage{
		Role:            "assistant",
		Content:         res.Content,
		Timestamp:       time.Now().UnixMilli(),
		GenerationStats: &stats,
	}
}
