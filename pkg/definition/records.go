package definition

import (
	"fmt"
	"log/slog"
)

// The catalog collections keep tools, agents and managers as separate
// documents joined by name references. These record types mirror that
// storage shape; they double as the schema for seed files.

// ToolRecord is a document of the tool collection.
type ToolRecord struct {
	ToolName       string            `bson:"tool_name" yaml:"tool_name" json:"tool_name"`
	Description    string            `bson:"description" yaml:"description" json:"description"`
	Parameters     []ParameterRecord `bson:"parameters_mandatory,omitempty" yaml:"parameters_mandatory,omitempty" json:"parameters_mandatory,omitempty"`
	IsAPI          bool              `bson:"isApi" yaml:"isApi" json:"isApi"`
	APIConfig      *APIConfigRecord  `bson:"api_config,omitempty" yaml:"api_config,omitempty" json:"api_config,omitempty"`
	IsLLM          bool              `bson:"isLLM" yaml:"isLLM" json:"isLLM"`
	PromptTemplate string            `bson:"prompt_template,omitempty" yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`
	IsActive       bool              `bson:"isActive" yaml:"isActive" json:"isActive"`
	ProjectName    string            `bson:"project_name,omitempty" yaml:"project_name,omitempty" json:"project_name,omitempty"`
}

type ParameterRecord struct {
	Name        string `bson:"name" yaml:"name" json:"name"`
	Type        string `bson:"type" yaml:"type" json:"type"`
	Description string `bson:"description" yaml:"description" json:"description"`
	Required    bool   `bson:"required" yaml:"required" json:"required"`
}

type APIAuthRecord struct {
	Type  string `bson:"type" yaml:"type" json:"type"`
	Token string `bson:"token,omitempty" yaml:"token,omitempty" json:"token,omitempty"`
}

type APIConfigRecord struct {
	Method       string            `bson:"method" yaml:"method" json:"method"`
	BaseURL      string            `bson:"base_url" yaml:"base_url" json:"base_url"`
	Auth         *APIAuthRecord    `bson:"auth,omitempty" yaml:"auth,omitempty" json:"auth,omitempty"`
	Headers      map[string]string `bson:"headers,omitempty" yaml:"headers,omitempty" json:"headers,omitempty"`
	BodyTemplate map[string]any    `bson:"body_template,omitempty" yaml:"body_template,omitempty" json:"body_template,omitempty"`
}

// AgentRecord is a document of the agent collection. Tools holds tool
// names; the loader aggregation replaces them with full tool documents.
type AgentRecord struct {
	AgentID           string       `bson:"agent_id" yaml:"agent_id" json:"agent_id"`
	Description       string       `bson:"description" yaml:"description" json:"description"`
	IsActive          bool         `bson:"isActive" yaml:"isActive" json:"isActive"`
	Tools             []ToolRecord `bson:"tools" yaml:"-" json:"-"`
	ToolNames         []string     `bson:"-" yaml:"tools" json:"tools"`
	ResponseGuideline string       `bson:"response_guideline,omitempty" yaml:"response_guideline,omitempty" json:"response_guideline,omitempty"`
}

// ManagerRecord is a document of the manager collection. Agents holds
// agent IDs; the loader aggregation replaces them with agent documents.
type ManagerRecord struct {
	ManagerID    string        `bson:"manager_id" yaml:"manager_id" json:"manager_id"`
	Description  string        `bson:"description" yaml:"description" json:"description"`
	IsActive     bool          `bson:"isActive" yaml:"isActive" json:"isActive"`
	Agents       []AgentRecord `bson:"agents" yaml:"-" json:"-"`
	AgentIDs     []string      `bson:"-" yaml:"agents" json:"agents"`
	IsSystemTool bool          `bson:"is_system_tool" yaml:"is_system_tool" json:"is_system_tool"`
	ProjectName  string        `bson:"project_name,omitempty" yaml:"project_name,omitempty" json:"project_name,omitempty"`
}

// UserRecord is a document of the user collection.
type UserRecord struct {
	Username string             `bson:"username" yaml:"username" json:"username"`
	Projects []string           `bson:"projects" yaml:"projects" json:"projects"`
	Settings UserSettingsRecord `bson:"settings" yaml:"settings" json:"settings"`
}

type UserSettingsRecord struct {
	LongTermMemoryEnabled bool `bson:"long_term_memory_enabled" yaml:"long_term_memory_enabled" json:"long_term_memory_enabled"`
}

// toDomain converts a populated manager document into the domain type.
// Tools carrying contradictory kind flags are dropped with a warning; the
// manager and its remaining tools stay usable.
func (r ManagerRecord) toDomain(log *slog.Logger) Manager {
	m := Manager{
		ID:          r.ManagerID,
		Description: r.Description,
		Active:      r.IsActive,
		System:      r.IsSystemTool,
	}
	for _, ar := range r.Agents {
		m.Agents = append(m.Agents, ar.toDomain(log))
	}
	return m
}

func (r AgentRecord) toDomain(log *slog.Logger) Agent {
	a := Agent{
		ID:                r.AgentID,
		Description:       r.Description,
		Active:            r.IsActive,
		ResponseGuideline: r.ResponseGuideline,
	}
	for _, tr := range r.Tools {
		t, err := tr.toDomain()
		if err != nil {
			log.Warn("skipping malformed tool definition",
				"agent_id", r.AgentID, "tool", tr.ToolName, "error", err)
			continue
		}
		a.Tools = append(a.Tools, t)
	}
	return a
}

func (r ToolRecord) toDomain() (Tool, error) {
	kind, err := kindFromFlags(r.IsAPI, r.IsLLM)
	if err != nil {
		return Tool{}, fmt.Errorf("tool %q: %w", r.ToolName, err)
	}
	t := Tool{
		Name:           r.ToolName,
		Description:    r.Description,
		Kind:           kind,
		PromptTemplate: r.PromptTemplate,
		Active:         r.IsActive,
	}
	for _, pr := range r.Parameters {
		t.Parameters = append(t.Parameters, Parameter(pr))
	}
	if r.APIConfig != nil {
		api := &APIConfig{
			Method:       r.APIConfig.Method,
			BaseURL:      r.APIConfig.BaseURL,
			Headers:      r.APIConfig.Headers,
			BodyTemplate: r.APIConfig.BodyTemplate,
		}
		if r.APIConfig.Auth != nil {
			auth := APIAuth(*r.APIConfig.Auth)
			api.Auth = &auth
		}
		t.API = api
	}
	return t, nil
}

func kindFromFlags(isAPI, isLLM bool) (ToolKind, error) {
	switch {
	case isAPI && isLLM:
		return "", fmt.Errorf("both isApi and isLLM set")
	case isAPI:
		return ToolKindAPI, nil
	case isLLM:
		return ToolKindLLMPrompt, nil
	default:
		return ToolKindNative, nil
	}
}
