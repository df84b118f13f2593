// Package opsagent runs operational tasks delegated by the sales agent: one
// language-model decision over a small set of simulated operations tools.
package opsagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"salesagent/internal/logger"
	"salesagent/internal/parser"
	"salesagent/internal/prompts"
	"salesagent/internal/tools"
	"salesagent/pkg/agenttypes"
)

// Operations tool names.
const (
	ToolScheduleMeeting = "schedule_meeting"
	ToolSendEmail       = "send_email"
	ToolWebSearch       = "web_search"
	ToolCreateDocument  = "create_document"
)

// Result statuses.
const (
	StatusSuccess       = "success"
	StatusError         = "error"
	StatusNotActionable = "not actionable"
)

// Result is the outcome of one operation, serialized as the delegation result.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result,omitempty"`
}

// JSON renders the result as a compact JSON document.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"status":%q,"message":%q}`, StatusError, err.Error())
	}
	return string(data)
}

// NewRegistry returns the operations tool catalogue.
func NewRegistry() *tools.Registry {
	r := tools.NewRegistry()
	defs := []tools.Definition{
		{
			Name:        ToolScheduleMeeting,
			Description: "Schedule a meeting and send calendar invites.",
			Args: []tools.ArgSpec{
				{Name: "attendees", Kind: tools.ArgStringList, Required: true, Help: "attendee email addresses"},
				{Name: "duration_minutes", Kind: tools.ArgInt, Required: true, Help: "meeting length in minutes"},
				{Name: "topic", Kind: tools.ArgString, Required: true, Help: "meeting topic"},
				{Name: "time_preference", Kind: tools.ArgString, Required: true, Help: "preferred day or time"},
			},
		},
		{
			Name:        ToolSendEmail,
			Description: "Send an email.",
			Args: []tools.ArgSpec{
				{Name: "recipient_email", Kind: tools.ArgString, Required: true, Help: "recipient address"},
				{Name: "subject", Kind: tools.ArgString, Required: true, Help: "subject line"},
				{Name: "body", Kind: tools.ArgString, Required: true, Help: "plain text body"},
			},
		},
		{
			Name:        ToolWebSearch,
			Description: "Research a topic on the web.",
			Args:        []tools.ArgSpec{{Name: "query", Kind: tools.ArgString, Required: true, Help: "search query"}},
		},
		{
			Name:        ToolCreateDocument,
			Description: "Create a document such as a proposal or meeting notes.",
			Args: []tools.ArgSpec{
				{Name: "document_type", Kind: tools.ArgString, Required: true, Help: "e.g. proposal, summary"},
				{Name: "content", Kind: tools.ArgString, Required: true, Help: "document content"},
			},
		},
		{
			Name:        tools.ToolUnactionable,
			Description: "Report that the task cannot be performed with the available tools or information.",
			Args:        []tools.ArgSpec{{Name: "reason", Kind: tools.ArgString, Required: true, Help: "what is missing"}},
		},
	}
	for _, def := range defs {
		_ = r.Register(def)
	}
	return r
}

// Agent executes delegated tasks. It implements tools.Delegator.
type Agent struct {
	llm      agenttypes.LLMClient
	registry *tools.Registry
	now      func() time.Time
	logger   *log.Logger
}

// New creates an ops agent using llm for tool selection. A nil now uses time.Now.
func New(llm agenttypes.LLMClient, now func() time.Time) *Agent {
	if now == nil {
		now = time.Now
	}
	return &Agent{
		llm:      llm,
		registry: NewRegistry(),
		now:      now,
		logger:   logger.NewStyledLogger("OpsAgent"),
	}
}

// Registry returns the operations tool catalogue.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Delegate asks the model to pick one operation for task and runs it. Only a
// failed model call is an error; a bad decision yields an error-status result.
func (a *Agent) Delegate(ctx context.Context, task string) (string, error) {
	a.logger.Info("Delegation started", "task", task)

	raw, err := a.llm.Invoke(ctx, prompts.Ops(task, a.registry))
	if err != nil {
		return "", fmt.Errorf("ops agent model call failed: %w", err)
	}

	descriptor, err := parser.DecodeAction(raw)
	if err != nil {
		a.logger.Warn("Ops decision could not be decoded", "error", err)
		return Result{Status: StatusError, Message: "The ops agent returned a malformed response: " + err.Error()}.JSON(), nil
	}

	def, args, err := a.registry.Validate(descriptor)
	if err != nil {
		var unknown *tools.UnknownToolError
		if errors.As(err, &unknown) {
			return Result{Status: StatusError, Message: fmt.Sprintf("Ops agent selected an unsupported tool: '%s'", unknown.Name)}.JSON(), nil
		}
		return Result{Status: StatusError, Message: err.Error()}.JSON(), nil
	}

	a.logger.Info("Ops tool selected", "tool", def.Name, "thought", descriptor.Thought)
	return a.Execute(def.Name, args).JSON(), nil
}

// Execute runs a validated operation. All operations are simulated.
func (a *Agent) Execute(tool string, args tools.Args) Result {
	switch tool {
	case ToolScheduleMeeting:
		attendees := strings.Join(args.Strings("attendees"), ", ")
		minutes := args.Int("duration_minutes")
		if minutes <= 0 {
			return Result{Status: StatusError, Message: "duration_minutes must be positive"}
		}
		a.logger.Info("Simulated meeting scheduled", "topic", args.String("topic"), "attendees", attendees,
			"duration", minutes, "preference", args.String("time_preference"))
		return Result{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("A %d-minute meeting about '%s' has been successfully scheduled with %s.", minutes, args.String("topic"), attendees),
		}

	case ToolSendEmail:
		a.logger.Info("Simulated email queued", "to", args.String("recipient_email"), "subject", args.String("subject"))
		return Result{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("Email with subject '%s' has been sent to %s.", args.String("subject"), args.String("recipient_email")),
		}

	case ToolWebSearch:
		query := args.String("query")
		a.logger.Info("Simulated web search", "query", query)
		return Result{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("Web search completed for '%s'.", query),
			Result:  fmt.Sprintf("Research on '%s' is not available offline; treat this topic as unverified.", query),
		}

	case ToolCreateDocument:
		docType := args.String("document_type")
		filename := fmt.Sprintf("%s_%s.txt", docType, a.now().Format("20060102150405"))
		a.logger.Info("Simulated document created", "type", docType, "filename", filename)
		return Result{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("Document '%s' of type '%s' has been successfully created.", filename, docType),
		}

	case tools.ToolUnactionable:
		return Result{Status: StatusNotActionable, Message: args.String("reason")}
	}

	return Result{Status: StatusError, Message: fmt.Sprintf("Ops agent selected an unsupported tool: '%s'", tool)}
}
