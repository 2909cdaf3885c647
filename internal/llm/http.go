package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// roleMessage is the {role, content} pair both remote APIs accept.
type roleMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toRoleMessages prepends the persona system prompt and normalises roles.
func toRoleMessages(req ChatRequest) []roleMessage {
	out := make([]roleMessage, 0, len(req.Messages)+1)
	if sp := GetSystemPrompt(req.Persona); sp != "" {
		out = append(out, roleMessage{Role: "system", Content: sp})
	}
	for _, m := range req.Messages {
		role := normalizeRole(m.Role)
		out = append(out, roleMessage{Role: role, Content: m.Content})
	}
	return out
}

func normalizeRole(r string) string {
	switch r {
	case "system", "assistant", "user":
		return r
	case "System", "SYSTEM":
		return "system"
	case "Assistant", "ASSISTANT":
		return "assistant"
	default:
		return "user"
	}
}

// doJSON sends payload (if any) to url and decodes a 2xx body into out.
// Non-2xx responses become errors carrying a truncated body.
func doJSON(ctx context.Context, cli *http.Client, method, url string, headers map[string]string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateString(string(raw), 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// promptTokens estimates tokens over every request message plus the reply.
func promptTokens(req ChatRequest, reply string) int {
	n := 0
	for _, m := range req.Messages {
		n += len(m.Content) + 1
	}
	return (n + len(reply)) / 4
}
