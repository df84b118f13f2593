// Package statemachine drives one turn of a sales conversation through the
// Reason, Dispatch and Guidance states until the turn or the conversation ends.
// A Machine holds no session data; all state lives in the session.State it is given.
package statemachine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"salesagent/internal/logger"
	"salesagent/internal/session"
	"salesagent/pkg/agenttypes"
)

// FallbackResponse is sent when a turn is forced closed without a model-provided reply.
const FallbackResponse = "I'm having trouble processing that. Could you please try again?"

// Reasoner produces and records one reasoning attempt. It returns an error only
// for turn-manager invariant violations; model failures are recorded as actions.
type Reasoner interface {
	Reason(ctx context.Context, st *session.State) error
}

// Dispatcher executes the tool selected by the pending reasoning.
type Dispatcher interface {
	Dispatch(ctx context.Context, st *session.State) agenttypes.Action
}

// Guide revises the session guidance. It never fails the turn.
type Guide interface {
	Guide(ctx context.Context, st *session.State)
}

// Result describes how a run ended.
type Result struct {
	// Final is StateEndTurn or StateEndConversation.
	Final agenttypes.State
	// Response is the agent reply that closed the turn.
	Response string
	// Turn is the finalized turn.
	Turn agenttypes.Turn
	// Trace lists every state entered, in order.
	Trace []agenttypes.State
	// Dispatches is the number of dispatch cycles the turn used.
	Dispatches int
}

// StateMachine runs turns for one session at a time.
type StateMachine struct {
	reasoner   Reasoner
	dispatcher Dispatcher
	guide      Guide
	config     agenttypes.OrchestratorConfig
	logger     *log.Logger
}

// NewStateMachine creates a state machine. guide may be nil to disable periodic guidance.
func NewStateMachine(reasoner Reasoner, dispatcher Dispatcher, guide Guide, config agenttypes.OrchestratorConfig) *StateMachine {
	defaults := agenttypes.DefaultOrchestratorConfig()
	if config.MaxDispatchCycles <= 0 {
		config.MaxDispatchCycles = defaults.MaxDispatchCycles
	}
	if config.CadenceMode == "" {
		config.CadenceMode = defaults.CadenceMode
	}

	return &StateMachine{
		reasoner:   reasoner,
		dispatcher: dispatcher,
		guide:      guide,
		config:     config,
		logger:     logger.NewStyledLogger("StateMachine"),
	}
}

// GetConfig returns the current configuration.
func (sm *StateMachine) GetConfig() agenttypes.OrchestratorConfig {
	return sm.config
}

// Run drives the session from StateReason to a terminal state. A terminated
// session is rejected with ErrConversationEnded and nothing is recorded.
func (sm *StateMachine) Run(ctx context.Context, st *session.State) (Result, error) {
	if st.Terminated() {
		return Result{}, agenttypes.ErrConversationEnded
	}

	run := &turnRun{state: agenttypes.StateReason}

	for !run.state.IsTerminal() {
		run.trace = append(run.trace, run.state)
		sm.logger.Debug("Processing state", "state", run.state, "turn", st.TurnCounter(), "session", st.ID)

		var err error
		switch run.state {
		case agenttypes.StateReason:
			err = sm.processReason(ctx, st, run)
		case agenttypes.StateDispatch:
			err = sm.processDispatch(ctx, st, run)
		case agenttypes.StateGuidance:
			sm.processGuidance(ctx, st, run)
		default:
			err = fmt.Errorf("unknown state: %s", run.state)
		}
		if err != nil {
			return Result{Trace: run.trace, Dispatches: run.dispatches}, err
		}
	}

	run.trace = append(run.trace, run.state)
	sm.logger.Info("Turn finished", "state", run.state, "turn", run.turn.Number, "dispatches", run.dispatches)

	return Result{
		Final:      run.state,
		Response:   run.turn.FinalResponse,
		Turn:       run.turn,
		Trace:      run.trace,
		Dispatches: run.dispatches,
	}, nil
}

// turnRun is the bookkeeping of a single Run.
type turnRun struct {
	state      agenttypes.State
	trace      []agenttypes.State
	dispatches int
	guided     bool
	turn       agenttypes.Turn
}

func (sm *StateMachine) processReason(ctx context.Context, st *session.State, run *turnRun) error {
	if err := sm.reasoner.Reason(ctx, st); err != nil {
		return fmt.Errorf("reasoning step aborted: %w", err)
	}

	decision := Route(st)
	sm.logger.Debug("Routed", "state", decision.Next, "rule", decision.Reason)

	switch decision.Next {
	case agenttypes.StateEndTurn:
		if decision.Opening {
			// the opening utterance is already in the transcript
			return sm.finish(st, run, agenttypes.StateEndTurn, decision.Response)
		}
		return sm.reply(st, run, agenttypes.StateEndTurn, decision.Response)

	case agenttypes.StateEndConversation:
		if err := st.Terminate(); err != nil {
			return err
		}
		return sm.reply(st, run, agenttypes.StateEndConversation, decision.Response)

	default:
		if run.dispatches >= sm.config.MaxDispatchCycles {
			sm.logger.Warn("Dispatch limit exceeded", "turn", st.TurnCounter(), "limit", sm.config.MaxDispatchCycles)
			st.Record(agenttypes.ActionError, agenttypes.ActionDetails{
				Error:     fmt.Sprintf("exceeded %d dispatch cycles in one turn", sm.config.MaxDispatchCycles),
				ErrorKind: agenttypes.ErrorKindDispatchLimit,
			})
			return sm.reply(st, run, agenttypes.StateEndTurn, FallbackResponse)
		}
		run.state = agenttypes.StateDispatch
		return nil
	}
}

func (sm *StateMachine) processDispatch(ctx context.Context, st *session.State, run *turnRun) error {
	action := sm.dispatcher.Dispatch(ctx, st)
	run.dispatches++
	sm.logger.Debug("Dispatched", "tool", action.Details.Tool, "action", action.Type)

	if st.Terminated() {
		// a dispatched tool closed the conversation and already spoke
		return sm.finish(st, run, agenttypes.StateEndConversation, st.LastAgentUtterance())
	}

	if sm.guidanceDue(st, run) {
		run.state = agenttypes.StateGuidance
		return nil
	}
	run.state = agenttypes.StateReason
	return nil
}

func (sm *StateMachine) processGuidance(ctx context.Context, st *session.State, run *turnRun) {
	sm.guide.Guide(ctx, st)
	run.guided = true
	run.state = agenttypes.StateReason
}

// guidanceDue evaluates the cadence predicate after a dispatch cycle. In
// per-turn mode guidance runs at most once per turn.
func (sm *StateMachine) guidanceDue(st *session.State, run *turnRun) bool {
	if sm.guide == nil || !CadenceApplies(st.TurnCounter(), sm.config.GuidanceCadence) {
		return false
	}
	if sm.config.CadenceMode == agenttypes.CadencePerTurn && run.guided {
		return false
	}
	return true
}

// reply appends the agent utterance and finalizes the turn.
func (sm *StateMachine) reply(st *session.State, run *turnRun, final agenttypes.State, response string) error {
	if response == "" {
		response = FallbackResponse
	}
	st.AppendUtterance(agenttypes.SpeakerAgent, response)
	return sm.finish(st, run, final, response)
}

func (sm *StateMachine) finish(st *session.State, run *turnRun, final agenttypes.State, response string) error {
	turn, err := st.Finalize(response)
	if err != nil {
		return fmt.Errorf("failed to finalize turn: %w", err)
	}
	run.turn = turn
	run.state = final
	return nil
}
