// Copyright 2025 Tarick Lorran
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apitool implements the generic API execution engine. One
// registered instance serves every API-kind tool in the catalog; the
// request shape comes entirely from the tool definition it is invoked
// with.
package apitool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

const defaultTimeout = 30 * time.Second

// Tool executes HTTP calls described by API-kind tool definitions.
type Tool struct {
	client *http.Client
	log    *slog.Logger
}

// New builds the API execution tool. A nil client gets a default with a
// 30s timeout.
func New(client *http.Client, log *slog.Logger) *Tool {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tool{client: client, log: log}
}

func (t *Tool) Name() string { return tool.KeyAPIExecution }

func (t *Tool) Description() string {
	return "Ferramenta genérica para executar APIs configuradas no banco de dados."
}

// Execute resolves the request from the invocation's definition, performs
// it and returns the response body pretty-printed as JSON.
func (t *Tool) Execute(ctx context.Context, inv tool.Invocation) tool.Result {
	def := inv.Definition
	if def == nil || def.API == nil {
		var name string
		if def != nil {
			name = def.Name
		}
		return failure(fmt.Sprintf("A ferramenta '%s' não possui 'api_config'.", name))
	}

	req, err := t.buildRequest(ctx, def, inv.Params)
	if err != nil {
		return failure(fmt.Sprintf("Erro inesperado: %v", err))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("Erro de conexão ao chamar a API '%s': %v", def.Name, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Sprintf("Erro de conexão ao chamar a API '%s': %v", def.Name, err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return failure(fmt.Sprintf("Erro HTTP ao chamar a API '%s': %d - %s", def.Name, resp.StatusCode, string(body)))
	}

	// Non-JSON bodies are carried as plain strings; either way the output
	// is the pretty-printed JSON encoding of the payload.
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = string(body)
	}
	return tool.Result{Success: true, Output: prettyJSON(payload)}
}

// buildRequest fills the definition's request template with the call
// parameters. Each parameter is spent once: URL placeholders first, then
// body-template slots; whatever is left and declared becomes a query
// parameter.
func (t *Tool) buildRequest(ctx context.Context, def *definition.Tool, params map[string]any) (*http.Request, error) {
	cfg := def.API

	rawURL := cfg.BaseURL
	used := make(map[string]bool, len(params))
	for key, value := range params {
		placeholder := "{" + key + "}"
		if strings.Contains(rawURL, placeholder) {
			rawURL = strings.ReplaceAll(rawURL, placeholder, paramString(value))
			used[key] = true
		}
	}

	var bodyReader io.Reader
	if cfg.BodyTemplate != nil {
		body := make(map[string]any, len(cfg.BodyTemplate))
		for key, value := range cfg.BodyTemplate {
			body[key] = value
			slot, ok := value.(string)
			if !ok || !strings.HasPrefix(slot, "{") || !strings.HasSuffix(slot, "}") {
				continue
			}
			paramKey := strings.Trim(slot, "{}")
			if v, ok := params[paramKey]; ok {
				body[key] = v
				used[paramKey] = true
			}
		}
		encoded, err := encodeBody(body)
		if err != nil {
			return nil, err
		}
		bodyReader = encoded
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	query := u.Query()
	for _, p := range def.Parameters {
		if v, ok := params[p.Name]; ok && !used[p.Name] {
			query.Set(p.Name, paramString(v))
		}
	}
	u.RawQuery = query.Encode()

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := cfg.Auth; auth != nil && auth.Type == "bearer" && auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}
	return req, nil
}

func encodeBody(body map[string]any) (io.Reader, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return &buf, nil
}

func paramString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func failure(message string) tool.Result {
	return tool.Result{Success: false, Output: message}
}

var _ tool.Tool = (*Tool)(nil)
