package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Execution struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error  string `json:"error"`
}

// Executor runs a snippet in an isolated sandbox.
type Executor interface {
	Run(ctx context.Context, code, language string) (*Execution, error)
}

// SandboxClient calls a remote code sandbox over HTTP.
type SandboxClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSandboxClient(baseURL, apiKey string) *SandboxClient {
	return &SandboxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sandboxRunReq struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Template string `json:"template"`
}

func (c *SandboxClient) Run(ctx context.Context, code, language string) (*Execution, error) {
	template := "bash"
	if language == "python" {
		template = "python-notebook"
	}
	b, err := json.Marshal(sandboxRunReq{Code: code, Language: language, Template: template})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("sandbox status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Execution
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sandbox response: %w", err)
	}
	return &out, nil
}
