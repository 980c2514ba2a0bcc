package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
)

// Decision values the delegator may return.
const (
	DecisionCallManager = "call_manager"
	DecisionFinalAnswer = "final_answer"
	DecisionError       = "error"
)

const delegatorSystemInstruction = "Você é um orquestrador de IA que responde em JSON."

// Fallback answers when the delegator cannot produce a usable decision.
const (
	delegatorTemplateMissingAnswer = "Não consegui encontrar minhas instruções para decidir o próximo passo. Por favor, contate o suporte."
	delegatorUnparsableAnswer      = "Desculpe, tive um problema ao decidir o que fazer a seguir. Tente novamente."
)

// Decision is the delegator verdict for one orchestration cycle: either
// delegate NewQuestion to ManagerID or close with FinalAnswer.
type Decision struct {
	Decision    string `mapstructure:"decision"`
	Thought     string `mapstructure:"thought"`
	ManagerID   string `mapstructure:"manager_id"`
	NewQuestion string `mapstructure:"new_question"`
	FinalAnswer string `mapstructure:"final_answer"`
}

// DecideNextStep asks the model which manager to delegate to next, or
// whether the gathered results already answer the user. It never fails:
// template or parse trouble degrades into a Decision the orchestrator can
// still route on.
func (a *Adapter) DecideNextStep(ctx context.Context, execCtx *execution.Context, managers []definition.Manager, chatHistory []conversation.Message) Decision {
	template, err := a.templates.Load(TemplateDelegator)
	if err != nil {
		a.log.Error("delegator template unavailable", "error", err)
		return Decision{Decision: DecisionError, FinalAnswer: delegatorTemplateMissingAnswer}
	}

	reactHistory := "Nenhum histórico de raciocínio ainda."
	if len(execCtx.ReactHistory) > 0 {
		reactHistory = strings.Join(execCtx.ReactHistory, "\n")
	}

	prompt := Fill(template, map[string]string{
		"user_id":            execCtx.UserID,
		"chat_history":       formatChatHistory(chatHistory),
		"user_input":         execCtx.UserQuestion,
		"available_managers": jsonPretty(summarizeManagers(managers)),
		"previous_results":   jsonPretty(execCtx.ResultsMap()),
		"react_history":      reactHistory,
		"current_date":       a.currentDate(),
	})

	response, err := a.generator.Generate(ctx, Request{System: delegatorSystemInstruction, Prompt: prompt})
	if err != nil {
		a.log.Error("delegator generation failed", "error", err)
		return Decision{Decision: DecisionFinalAnswer, FinalAnswer: delegatorUnparsableAnswer}
	}

	decision, err := ParseDecision(response)
	if err != nil {
		a.log.Error("delegator returned unparsable decision", "error", err, "response", response)
		return Decision{Decision: DecisionFinalAnswer, FinalAnswer: delegatorUnparsableAnswer}
	}
	return decision
}

// ParseDecision extracts the decision object from a model reply that may
// carry prose or code fences around the JSON.
func ParseDecision(response string) (Decision, error) {
	block, ok := jsonBlock(response)
	if !ok {
		return Decision{}, fmt.Errorf("no JSON object in delegator response")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return Decision{}, fmt.Errorf("decode delegator response: %w", err)
	}
	var decision Decision
	if err := mapstructure.Decode(raw, &decision); err != nil {
		return Decision{}, fmt.Errorf("map delegator response: %w", err)
	}
	return decision, nil
}
