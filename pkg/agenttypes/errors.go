package agenttypes

import "errors"

var (
	// ErrTurnInProgress is returned when a turn is started while another turn's
	// action buffer is still unfinalized. It indicates an orchestration bug.
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrNoTurnInProgress is returned when finalizing without an active turn.
	ErrNoTurnInProgress = errors.New("no turn in progress")

	// ErrAlreadyTerminated is returned when termination is requested twice.
	ErrAlreadyTerminated = errors.New("conversation already terminated")

	// ErrConversationEnded is returned when a terminated session is advanced.
	ErrConversationEnded = errors.New("conversation has ended")

	// ErrLeadNotFound is returned by lead directories for unknown ids.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrNotOpened is returned when a session is advanced before its opening turn.
	ErrNotOpened = errors.New("session has not been opened")
)
