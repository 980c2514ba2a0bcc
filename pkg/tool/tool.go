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

// Package tool defines the contract every executable capability implements
// and the process-wide registry that resolves them by name.
//
// A tool is a plain Go value registered at startup. Definition-driven tools
// (HTTP calls, prompt templates) receive their catalog definition in the
// invocation; native tools carry everything they need. The registry is
// immutable after startup: registration happens while the process wires
// itself, lookups happen during execution.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
)

// NextStepRequestUserInput on a Result suspends the execution until the
// user supplies the parameters listed in RequiredParams.
const NextStepRequestUserInput = "REQUEST_USER_INPUT"

// Registry keys of the shared definition-driven implementations. Catalog
// tools dispatch by kind to one of these; native tools dispatch to their
// own name.
const (
	KeyPromptExecution = "PromptExecutionTool"
	KeyAPIExecution    = "ExecutarAPI"
)

// Invocation carries the inputs of one tool call.
type Invocation struct {
	// Params are the call arguments produced by the react action.
	Params map[string]any
	// Context is the live execution context, for tools that read user or
	// session data. Tools must not mutate it.
	Context *execution.Context
	// Definition is the catalog entry that dispatched here. Nil for native
	// tools that do not need one.
	Definition *definition.Tool
}

// Result is the outcome of one tool call. Output is the observation fed
// back into the react loop; it must be serializable.
type Result struct {
	Success        bool     `json:"success"`
	Output         any      `json:"output"`
	NextStep       string   `json:"next_step,omitempty"`
	RequiredParams []string `json:"required_params,omitempty"`
}

// Tool is the contract of an executable capability.
type Tool interface {
	// Name is the registry key.
	Name() string
	// Description is shown to users when capabilities are listed.
	Description() string
	// Execute runs the tool. Failures are reported through the Result,
	// never panics.
	Execute(ctx context.Context, inv Invocation) Result
}

// Registry resolves tools by name. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		tools: make(map[string]Tool),
		log:   log,
	}
}

// Register adds a tool under its declared name. A duplicate name logs a
// warning and the last registration wins.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		r.log.Warn("tool already registered, overwriting", "tool", name)
	}
	r.tools[name] = t
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("Ferramenta '%s' não registrada", name)
	}
	return t, nil
}

// List returns a snapshot of the registered tools.
func (r *Registry) List() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		snapshot[name] = t
	}
	return snapshot
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
