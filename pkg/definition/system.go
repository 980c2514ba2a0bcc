package definition

// Tool names the native implementations register under. The meta manager
// is always offered; the memory manager only when the user enabled it.
const (
	MetaManagerID   = "SYS_META_MANAGER"
	MemoryManagerID = "SYS_MEMORY_MANAGER"

	CapabilitiesToolName = "listCapabilities"
	MemorySearchToolName = "searchLongTermMemory"
)

// MetaManager returns the built-in manager that describes the system
// itself. A fresh value is returned so callers can never share state.
func MetaManager() Manager {
	return Manager{
		ID:          MetaManagerID,
		Description: "Gerencia ferramentas sobre o próprio sistema, como listar capacidades.",
		Active:      true,
		System:      true,
		Agents: []Agent{
			{
				ID:          "SYS_CAPABILITIES_AGENT",
				Description: "Agente que sabe descrever as funcionalidades do sistema.",
				Active:      true,
				Tools: []Tool{
					{
						Name:        CapabilitiesToolName,
						Description: "Lista e descreve as principais capacidades e ferramentas disponíveis para ajudar o usuário.",
						Kind:        ToolKindNative,
						Active:      true,
					},
				},
			},
		},
	}
}

// MemoryManager returns the built-in manager that searches the user's
// long-term memory.
func MemoryManager() Manager {
	return Manager{
		ID:          MemoryManagerID,
		Description: "Especialista em acessar a memória de longo prazo do usuário para lembrar de conversas e informações passadas.",
		Active:      true,
		System:      true,
		Agents: []Agent{
			{
				ID:          "SYS_RECALL_AGENT",
				Description: "Agente com a capacidade de buscar em resumos de conversas antigas.",
				Active:      true,
				Tools: []Tool{
					{
						Name:        MemorySearchToolName,
						Description: "Use para buscar informações ou contexto de conversas que aconteceram há mais de um dia. Ótima para perguntas como 'lembra quando falamos sobre X?' ou 'qual foi a decisão sobre Y?'.",
						Kind:        ToolKindNative,
						Active:      true,
						Parameters: []Parameter{
							{
								Name:        "query",
								Type:        "string",
								Description: "O tópico ou pergunta a ser buscado na memória.",
								Required:    true,
							},
						},
					},
				},
			},
		},
	}
}
