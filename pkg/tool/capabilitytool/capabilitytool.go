// Package capabilitytool implements the built-in capability listing. It
// answers "o que você sabe fazer?" by describing every public manager in
// the user's catalog; system managers stay invisible.
package capabilitytool

import (
	"context"
	"log/slog"
	"strings"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

const emptyCatalogAnswer = "No momento, não tenho ferramentas específicas disponíveis."

// Catalog resolves the manager catalog of a user. The definition loader
// satisfies it.
type Catalog interface {
	Load(ctx context.Context, userID string) ([]definition.Manager, definition.UserSettings, error)
}

// Tool renders the user's public capabilities as a readable list.
type Tool struct {
	catalog Catalog
	log     *slog.Logger
}

func New(catalog Catalog, log *slog.Logger) *Tool {
	if log == nil {
		log = slog.Default()
	}
	return &Tool{catalog: catalog, log: log}
}

func (t *Tool) Name() string { return definition.CapabilitiesToolName }

func (t *Tool) Description() string {
	return "Lista e descreve as principais capacidades e ferramentas disponíveis para ajudar o usuário."
}

func (t *Tool) Execute(ctx context.Context, inv tool.Invocation) tool.Result {
	var userID string
	if inv.Context != nil {
		userID = inv.Context.UserID
	}

	managers, _, err := t.catalog.Load(ctx, userID)
	if err != nil {
		// A catalog that cannot be read lists the same as an empty one.
		t.log.Error("capability listing could not load definitions", "user_id", userID, "error", err)
		return tool.Result{Success: true, Output: emptyCatalogAnswer}
	}

	return tool.Result{Success: true, Output: describe(managers)}
}

func describe(managers []definition.Manager) string {
	lines := []string{"Claro! Eu posso te ajudar com as seguintes capacidades:"}
	listed := false
	for _, m := range managers {
		if m.System {
			continue
		}
		listed = true
		lines = append(lines, "\n- **"+m.Description+"**:")
		for _, agent := range m.Agents {
			for _, tl := range agent.Tools {
				lines = append(lines, "  - "+tl.Description)
			}
		}
	}
	if !listed {
		return emptyCatalogAnswer
	}
	return strings.Join(lines, "\n")
}

var _ tool.Tool = (*Tool)(nil)
