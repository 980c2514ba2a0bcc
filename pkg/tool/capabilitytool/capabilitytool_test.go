package capabilitytool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

type stubCatalog struct {
	managers []definition.Manager
	err      error
	userID   string
}

func (s *stubCatalog) Load(_ context.Context, userID string) ([]definition.Manager, definition.UserSettings, error) {
	s.userID = userID
	return s.managers, definition.UserSettings{}, s.err
}

func TestExecuteListsPublicManagers(t *testing.T) {
	catalog := &stubCatalog{managers: []definition.Manager{
		{
			ID:          "manager_bancario",
			Description: "Operações bancárias",
			Agents: []definition.Agent{
				{
					ID: "agente_contas",
					Tools: []definition.Tool{
						{Name: "consultaSaldo", Description: "Consulta o saldo da conta"},
						{Name: "resumoExtrato", Description: "Resume o extrato do mês"},
					},
				},
			},
		},
		definition.MetaManager(),
	}}

	capTool := New(catalog, nil)
	result := capTool.Execute(context.Background(), tool.Invocation{
		Context: &execution.Context{UserID: "user-1"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "user-1", catalog.userID)
	assert.Equal(t, "Claro! Eu posso te ajudar com as seguintes capacidades:\n"+
		"\n- **Operações bancárias**:\n"+
		"  - Consulta o saldo da conta\n"+
		"  - Resume o extrato do mês", result.Output)
}

func TestExecuteOnlySystemManagers(t *testing.T) {
	catalog := &stubCatalog{managers: []definition.Manager{definition.MetaManager(), definition.MemoryManager()}}

	capTool := New(catalog, nil)
	result := capTool.Execute(context.Background(), tool.Invocation{
		Context: &execution.Context{UserID: "user-1"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "No momento, não tenho ferramentas específicas disponíveis.", result.Output)
}

func TestExecuteCatalogError(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("mongo indisponível")}

	capTool := New(catalog, nil)
	result := capTool.Execute(context.Background(), tool.Invocation{
		Context: &execution.Context{UserID: "user-1"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "No momento, não tenho ferramentas específicas disponíveis.", result.Output)
}

func TestExecuteWithoutContext(t *testing.T) {
	catalog := &stubCatalog{}

	capTool := New(catalog, nil)
	result := capTool.Execute(context.Background(), tool.Invocation{})

	require.True(t, result.Success)
	assert.Empty(t, catalog.userID)
}
