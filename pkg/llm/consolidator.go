package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/taricklorran/AGENT-TCC/pkg/execution"
)

// consolidationTemplate turns raw tool output and team reasoning into the
// final user-facing answer. Slots: question, tool results JSON, react
// history, optional formatting-rules section.
const consolidationTemplate = `## 🤖 Persona
Você é um Redator Chefe de IA, especialista em comunicação. Sua função é pegar dados brutos e rascunhos de uma equipe de agentes de IA e transformar tudo em uma resposta final, clara, coesa e perfeitamente formatada para um usuário humano.

---

## 📝 Contexto e Dados Recebidos

### Pergunta Original do Usuário:
%s

### Resultados Brutos das Ferramentas (Fonte da Verdade):
` + "```json\n%s\n```" + `

### Raciocínio Interno da Equipe (Para seu Contexto):
` + "```\n%s\n```" + `
---
%s
---
## 🎯 Tarefa Final e Regras de Ouro
Sua tarefa é sintetizar os **Resultados Brutos das Ferramentas** em uma resposta única e amigável para o usuário. Siga estas regras rigorosamente:
1. **Siga as Regras de Formatação:** Se a seção "Regras de Formatação Obrigatórias" existir, suas regras são a prioridade máxima para estilizar as informações correspondentes. Se um resultado não tiver uma regra, apresente-o de forma clara e legível.
2. **Baseie-se nos Fatos:** Sua resposta deve sintetizar **todas as informações de contexto disponíveis**. Se os ` + "`Resultados Brutos das Ferramentas`" + ` contiverem dados, eles são a fonte primária da verdade. Se estiverem vazios, use o ` + "`Raciocínio Interno da Equipe`" + ` para formular sua resposta, pois ele pode conter a conclusão direta encontrada pelo orquestrador. Não invente informações que não estejam no contexto fornecido.
3. **Fale com o Usuário:** A resposta final deve ser direcionada ao usuário, não um relatório técnico.
4. **Lide com Falhas:** Se os resultados indicarem que uma tarefa falhou, informe isso ao usuário de forma simples e direta.

Agora, gere a resposta final para o usuário.`

// Synthesize writes the final answer from everything the managers
// gathered. Formatting guidelines, when present, are injected as hard
// rules the model must follow. A generation failure yields an empty
// string for the caller to substitute.
func (a *Adapter) Synthesize(ctx context.Context, execCtx *execution.Context, guidelines []string) string {
	prompt := consolidationPrompt(execCtx, guidelines)

	response, err := a.generator.Generate(ctx, Request{System: a.templates.SystemInstruction(), Prompt: prompt})
	if err != nil {
		a.log.Error("consolidation generation failed", "error", err)
		return ""
	}
	return strings.TrimSpace(response)
}

func consolidationPrompt(execCtx *execution.Context, guidelines []string) string {
	var guidelinesSection string
	if len(guidelines) > 0 {
		guidelinesSection = "### 📜 Regras de Formatação Obrigatórias\n" +
			"Para construir a resposta final, você DEVE seguir estas regras de formatação para as informações correspondentes:\n" +
			"- " + strings.Join(guidelines, "\n- ")
	}

	return fmt.Sprintf(consolidationTemplate,
		execCtx.UserQuestion,
		jsonPretty(execCtx.ResultsMap()),
		strings.Join(execCtx.ReactHistory, "\n"),
		guidelinesSection,
	)
}
