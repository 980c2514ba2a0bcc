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

// Package definition models the capability catalog: managers own agents,
// agents own tools. Definitions live in MongoDB and are loaded per user;
// the built-in system managers are always available.
package definition

import (
	"fmt"
	"strings"
)

// ToolKind says how a tool executes. API and LLM prompt tools are driven
// entirely by their definition; native tools are compiled in.
type ToolKind string

const (
	ToolKindAPI       ToolKind = "API"
	ToolKindLLMPrompt ToolKind = "LLM_PROMPT"
	ToolKindNative    ToolKind = "NATIVE"
)

// Parameter describes one declared tool parameter.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// APIAuth configures authentication for an API tool. Only bearer tokens
// are supported; the token is passed through untouched.
type APIAuth struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// APIConfig is the request template of an API tool.
type APIConfig struct {
	Method       string            `json:"method"`
	BaseURL      string            `json:"base_url"`
	Auth         *APIAuth          `json:"auth,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate map[string]any    `json:"body_template,omitempty"`
}

// Tool is one executable capability owned by an agent.
type Tool struct {
	Name           string      `json:"tool_name"`
	Description    string      `json:"description"`
	Kind           ToolKind    `json:"kind"`
	Parameters     []Parameter `json:"parameters_mandatory,omitempty"`
	API            *APIConfig  `json:"api_config,omitempty"`
	PromptTemplate string      `json:"prompt_template,omitempty"`
	Active         bool        `json:"isActive"`
}

// ParameterSummary renders the declared parameters as "p1: T1, p2: T2"
// for prompt building, or "Nenhum" when the tool takes none.
func (t Tool) ParameterSummary() string {
	if len(t.Parameters) == 0 {
		return "Nenhum"
	}
	parts := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return strings.Join(parts, ", ")
}

// MissingParams returns the names of required parameters absent from params.
func (t Tool) MissingParams(params map[string]any) []string {
	var missing []string
	for _, p := range t.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// Agent groups tools under a single responsibility.
type Agent struct {
	ID                string `json:"agent_id"`
	Description       string `json:"description"`
	Active            bool   `json:"isActive"`
	Tools             []Tool `json:"tools"`
	ResponseGuideline string `json:"response_guideline,omitempty"`
}

// FindTool returns the agent's tool with the given name.
func (a Agent) FindTool(name string) (Tool, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// HasToolFold reports whether the agent owns a tool whose name matches
// case-insensitively, returning the canonical tool.
func (a Agent) HasToolFold(name string) (Tool, bool) {
	for _, t := range a.Tools {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Tool{}, false
}

// Manager is the delegation unit the orchestrator reasons about.
type Manager struct {
	ID          string  `json:"manager_id"`
	Description string  `json:"description"`
	Active      bool    `json:"isActive"`
	Agents      []Agent `json:"agents"`
	System      bool    `json:"is_system_tool"`
}

// HasTools reports whether any active agent of the manager has tools.
// Managers without tools are invisible to the delegator.
func (m Manager) HasTools() bool {
	for _, a := range m.Agents {
		if a.Active && len(a.Tools) > 0 {
			return true
		}
	}
	return false
}

// FindManager returns the active manager with the given ID.
func FindManager(managers []Manager, id string) (Manager, bool) {
	for _, m := range managers {
		if m.ID == id && m.Active {
			return m, true
		}
	}
	return Manager{}, false
}

// FindAgent returns the active agent with the given ID across all managers.
func FindAgent(managers []Manager, agentID string) (Agent, bool) {
	for _, m := range managers {
		for _, a := range m.Agents {
			if a.ID == agentID && a.Active {
				return a, true
			}
		}
	}
	return Agent{}, false
}

// UserSettings carries the per-user feature switches the loader honors.
type UserSettings struct {
	LongTermMemoryEnabled bool `json:"long_term_memory_enabled"`
}
