// Package adk runs an LLM-backed assistant that drives the stigforge engine
// through registered tools.
package adk

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/user/stigforge/pkg/logging"
)

// maxToolRounds bounds the tool-call loop of a single Chat turn.
const maxToolRounds = 8

var ErrTooManyToolCalls = errors.New("model exceeded the tool call limit")

// Tool represents an executable action for the agent
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error)
	Schema() map[string]interface{} // JSON schema for arguments
}

// ToolCall represents a request from the LLM to execute a tool
type ToolCall struct {
	ToolName string
	Args     map[string]interface{}
}

// Message represents a chat message
type Message struct {
	Role    string // "system", "user", "model", "function"
	Content string
}

// LLMProvider defines the interface for different AI models
type LLMProvider interface {
	GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Agent is the core ADK agent
type Agent struct {
	llm     LLMProvider
	tools   map[string]Tool
	system  string
	history []Message
}

// NewAgent creates a new agent with the given LLM provider
func NewAgent(llm LLMProvider) *Agent {
	return &Agent{
		llm:   llm,
		tools: make(map[string]Tool),
	}
}

// RegisterTool adds a tool to the agent's registry
func (a *Agent) RegisterTool(t Tool) {
	a.tools[t.Name()] = t
}

// SetSystemPrompt sets the instruction sent ahead of every turn.
func (a *Agent) SetSystemPrompt(prompt string) {
	a.system = prompt
}

// History returns the conversation so far, without the system prompt.
func (a *Agent) History() []Message {
	return append([]Message(nil), a.history...)
}

// toolList returns the registered tools sorted by name so the declarations
// sent to the model are stable between turns.
func (a *Agent) toolList() []Tool {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]Tool, 0, len(names))
	for _, name := range names {
		list = append(list, a.tools[name])
	}
	return list
}

func (a *Agent) messages() []Message {
	if a.system == "" {
		return a.history
	}
	return append([]Message{{Role: "system", Content: a.system}}, a.history...)
}

// Chat sends a message to the agent and returns the response
func (a *Agent) Chat(ctx context.Context, input string, progress func(string)) (string, error) {
	a.history = append(a.history, Message{Role: "user", Content: input})

	for round := 0; round < maxToolRounds; round++ {
		respText, toolCall, err := a.llm.GenerateResponse(ctx, a.messages(), a.toolList())
		if err != nil {
			return "", err
		}

		if toolCall == nil {
			a.history = append(a.history, Message{Role: "model", Content: respText})
			return respText, nil
		}

		logging.Debugf("Executing tool: %s with args: %v", toolCall.ToolName, toolCall.Args)

		// Record the model's intent to call the tool
		a.history = append(a.history, Message{
			Role:    "model",
			Content: fmt.Sprintf("I will call tool %s with args %v", toolCall.ToolName, toolCall.Args),
		})

		tool, exists := a.tools[toolCall.ToolName]
		if !exists {
			a.history = append(a.history, Message{Role: "function", Content: fmt.Sprintf("Error: Tool %s not found", toolCall.ToolName)})
			continue
		}

		result, err := tool.Execute(ctx, toolCall.Args, progress)
		if err != nil {
			result = fmt.Sprintf("Error executing tool: %v", err)
		}

		a.history = append(a.history, Message{
			Role:    "function",
			Content: fmt.Sprintf("Tool %s returned: %s", toolCall.ToolName, result),
		})
	}
	return "", ErrTooManyToolCalls
}
