package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"salesagent/internal/logger"
	"salesagent/internal/parser"
	"salesagent/internal/session"
	"salesagent/pkg/agenttypes"
)

// Delegator runs an operational task on behalf of the sales agent.
type Delegator interface {
	Delegate(ctx context.Context, task string) (string, error)
}

// Dispatcher decodes the pending reasoning of a turn and executes the chosen tool.
// Every outcome, including every failure, is recorded as an action; Dispatch never
// returns an error.
type Dispatcher struct {
	registry  *Registry
	retriever agenttypes.Retriever
	delegator Delegator
	logger    *log.Logger
}

// NewDispatcher creates a dispatcher. delegator may be nil when ops delegation is disabled.
func NewDispatcher(registry *Registry, retriever agenttypes.Retriever, delegator Delegator) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		retriever: retriever,
		delegator: delegator,
		logger:    logger.NewStyledLogger("Dispatcher"),
	}
}

// Registry returns the tool registry used for resolution.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// PendingReasoning returns the reasoning action awaiting a decision: the latest
// action of the turn when it is an llm_reasoning. Once anything is recorded after
// a reasoning action it is considered consumed.
func PendingReasoning(st *session.State) (agenttypes.Action, bool) {
	latest, ok := st.LatestAction()
	if !ok || latest.Type != agenttypes.ActionLLMReasoning {
		return agenttypes.Action{}, false
	}
	return latest, true
}

// Dispatch executes the tool selected by the pending reasoning and returns the
// action recorded for it.
func (d *Dispatcher) Dispatch(ctx context.Context, st *session.State) agenttypes.Action {
	reasoning, ok := PendingReasoning(st)
	if !ok {
		if latest, exists := st.LatestAction(); exists && latest.Type == agenttypes.ActionError {
			// the failure that left nothing to dispatch is already on record
			d.logger.Debug("No pending reasoning, failure already recorded", "turn", st.TurnCounter())
			return latest
		}
		d.logger.Warn("Dispatch without reasoning output", "turn", st.TurnCounter())
		return st.Record(agenttypes.ActionError, agenttypes.ActionDetails{
			Error:     "No reasoning output found to parse",
			ErrorKind: agenttypes.ErrorKindNoReasoning,
		})
	}

	descriptor, err := parser.DecodeAction(reasoning.Details.ReasoningOutput)
	if err != nil {
		kind := "unknown"
		if de, ok := parser.IsDecodeError(err); ok {
			kind = de.Kind.String()
		}
		d.logger.Warn("Failed to decode reasoning output", "turn", st.TurnCounter(), "kind", kind, "error", err)
		return st.Record(agenttypes.ActionError, agenttypes.ActionDetails{
			Error:     err.Error(),
			ErrorKind: agenttypes.ErrorKindDecode,
			Thought:   descriptor.Thought,
		})
	}

	call, err := d.registry.Resolve(descriptor)
	if err != nil {
		return d.recordResolveError(st, descriptor, err)
	}

	return d.execute(ctx, st, call, descriptor.Thought)
}

func (d *Dispatcher) recordResolveError(st *session.State, descriptor parser.Descriptor, err error) agenttypes.Action {
	kind := agenttypes.ErrorKindToolInvocation
	var unknown *UnknownToolError
	if errors.As(err, &unknown) {
		kind = agenttypes.ErrorKindUnknownTool
	}

	d.logger.Warn("Tool resolution failed", "tool", descriptor.Tool, "error", err)
	return st.Record(agenttypes.ActionError, agenttypes.ActionDetails{
		Error:         err.Error(),
		ErrorKind:     kind,
		AttemptedTool: descriptor.Tool,
		Thought:       descriptor.Thought,
	})
}

func (d *Dispatcher) execute(ctx context.Context, st *session.State, call Call, thought string) agenttypes.Action {
	d.logger.Info("Executing tool", "tool", call.Name(), "turn", st.TurnCounter())

	switch c := call.(type) {
	case SearchCall:
		if d.retriever == nil {
			return d.invocationError(st, c.Tool, thought, errors.New("no retriever configured"))
		}
		result, err := d.retriever.Search(ctx, c.Input, c.Corpus)
		if err != nil {
			return d.invocationError(st, c.Tool, thought, err)
		}
		st.AppendSnippet(fmt.Sprintf("[%s] %s", c.Tag, result))
		return st.Record(agenttypes.ActionToolExecution, agenttypes.ActionDetails{
			Tool:    c.Tool,
			Input:   c.Input,
			Result:  result,
			Thought: thought,
		})

	case ContextUpdateCall:
		st.MergeGuidance(c.Update)
		return st.Record(agenttypes.ActionContextUpdate, agenttypes.ActionDetails{
			Tool:    ToolUpdateContext,
			Updates: c.Updates(),
			Thought: thought,
		})

	case RespondCall:
		st.AppendUtterance(agenttypes.SpeakerAgent, c.Answer)
		return st.Record(agenttypes.ActionToolExecution, agenttypes.ActionDetails{
			Tool:    ToolGenerateResponse,
			Result:  c.Answer,
			Thought: thought,
		})

	case EndConversationCall:
		st.AppendUtterance(agenttypes.SpeakerAgent, c.Answer)
		if err := st.Terminate(); err != nil {
			d.logger.Debug("Termination already recorded", "error", err)
		}
		return st.Record(agenttypes.ActionToolExecution, agenttypes.ActionDetails{
			Tool:    ToolEndConversation,
			Result:  c.Answer,
			Thought: thought,
		})

	case UnactionableCall:
		d.logger.Warn("Task reported as unactionable", "reason", c.Reason)
		return st.Record(agenttypes.ActionToolExecution, agenttypes.ActionDetails{
			Tool:    ToolUnactionable,
			Input:   c.Reason,
			Result:  "not actionable",
			Thought: thought,
		})

	case DelegateCall:
		if d.delegator == nil {
			return d.invocationError(st, ToolDelegateOps, thought, errors.New("ops delegation is not enabled"))
		}
		result, err := d.delegator.Delegate(ctx, c.Task)
		if err != nil {
			return d.invocationError(st, ToolDelegateOps, thought, err)
		}
		st.AppendSnippet("[OPS] " + result)
		return st.Record(agenttypes.ActionToolExecution, agenttypes.ActionDetails{
			Tool:    ToolDelegateOps,
			Input:   c.Task,
			Result:  result,
			Thought: thought,
		})
	}

	return d.invocationError(st, call.Name(), thought, fmt.Errorf("unsupported call type %T", call))
}

func (d *Dispatcher) invocationError(st *session.State, tool, thought string, err error) agenttypes.Action {
	d.logger.Error("Tool invocation failed", "tool", tool, "error", err)
	return st.Record(agenttypes.ActionError, agenttypes.ActionDetails{
		Error:         fmt.Sprintf("tool '%s' failed: %v", tool, err),
		ErrorKind:     agenttypes.ErrorKindToolInvocation,
		AttemptedTool: tool,
		Thought:       thought,
	})
}
