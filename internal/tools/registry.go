package tools

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"salesagent/internal/parser"
	"salesagent/pkg/agenttypes"
)

// ArgKind is the expected JSON shape of a tool argument.
type ArgKind int

const (
	// ArgString is a JSON string.
	ArgString ArgKind = iota
	// ArgStringList is a JSON array of strings; a single string is accepted as one element.
	ArgStringList
	// ArgScores is a JSON object of numeric scores.
	ArgScores
	// ArgInt is a JSON number with no fractional part.
	ArgInt
)

// String returns the string representation of the kind.
func (k ArgKind) String() string {
	switch k {
	case ArgString:
		return "string"
	case ArgStringList:
		return "list of strings"
	case ArgScores:
		return "object of numbers"
	case ArgInt:
		return "integer"
	default:
		return "unknown"
	}
}

// ArgSpec describes one named argument.
type ArgSpec struct {
	Name     string
	Kind     ArgKind
	Required bool
	Help     string
}

// Definition describes a tool: its name, purpose and argument record.
type Definition struct {
	Name        string
	Description string
	Args        []ArgSpec
	// Terminal tools end the turn and are handled by the router rather than dispatched.
	Terminal bool

	build func(args Args) (Call, error)
}

// Args holds validated arguments keyed by name.
type Args map[string]any

// String returns a string argument or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Strings returns a list argument or nil.
func (a Args) Strings(name string) []string {
	l, _ := a[name].([]string)
	return l
}

// Scores returns a score argument or nil.
func (a Args) Scores(name string) map[string]int {
	m, _ := a[name].(map[string]int)
	return m
}

// Int returns an integer argument or 0.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// UnknownToolError is returned when a descriptor names a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool '%s'", e.Name)
}

// ArgumentError is returned when a registered tool receives missing, extra or
// wrongly typed arguments.
type ArgumentError struct {
	Tool    string
	Missing []string
	Extra   []string
	Invalid map[string]string
}

func (e *ArgumentError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	if len(e.Invalid) > 0 {
		names := make([]string, 0, len(e.Invalid))
		for name := range e.Invalid {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s must be %s", name, e.Invalid[name]))
		}
	}
	return fmt.Sprintf("invalid arguments for tool '%s': %s", e.Tool, strings.Join(parts, "; "))
}

// ignoredArgs may appear inside an action object without being tool arguments.
var ignoredArgs = map[string]bool{"thought": true, "rationale": true}

// Registry maps tool names to definitions.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition of a tool.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Validate checks a decoded descriptor against its tool definition.
func (r *Registry) Validate(d parser.Descriptor) (Definition, Args, error) {
	def, ok := r.defs[d.Tool]
	if !ok {
		return Definition{}, nil, &UnknownToolError{Name: d.Tool}
	}

	args, err := ValidateArgs(def, d.Args)
	if err != nil {
		return def, nil, err
	}
	return def, args, nil
}

// Resolve validates a decoded descriptor and builds the call.
func (r *Registry) Resolve(d parser.Descriptor) (Call, error) {
	def, args, err := r.Validate(d)
	if err != nil {
		return nil, err
	}
	if def.build == nil {
		return nil, fmt.Errorf("tool '%s' cannot be dispatched by this agent", def.Name)
	}
	return def.build(args)
}

// ValidateArgs checks raw arguments against a definition and converts them to their declared kinds.
func ValidateArgs(def Definition, raw map[string]any) (Args, error) {
	argErr := &ArgumentError{Tool: def.Name}
	args := make(Args, len(def.Args))
	known := make(map[string]bool, len(def.Args))

	for _, arg := range def.Args {
		known[arg.Name] = true
		value, present := raw[arg.Name]
		if !present || value == nil {
			if arg.Required {
				argErr.Missing = append(argErr.Missing, arg.Name)
			}
			continue
		}

		converted, ok := convert(arg.Kind, value)
		if !ok {
			if argErr.Invalid == nil {
				argErr.Invalid = make(map[string]string)
			}
			argErr.Invalid[arg.Name] = arg.Kind.String()
			continue
		}
		if arg.Required && arg.Kind == ArgString && strings.TrimSpace(converted.(string)) == "" {
			argErr.Missing = append(argErr.Missing, arg.Name)
			continue
		}
		args[arg.Name] = converted
	}

	for name := range raw {
		if !known[name] && !ignoredArgs[name] {
			argErr.Extra = append(argErr.Extra, name)
		}
	}
	sort.Strings(argErr.Extra)

	if len(argErr.Missing) > 0 || len(argErr.Extra) > 0 || len(argErr.Invalid) > 0 {
		return nil, argErr
	}
	return args, nil
}

func convert(kind ArgKind, value any) (any, bool) {
	switch kind {
	case ArgString:
		s, ok := value.(string)
		return s, ok
	case ArgStringList:
		switch v := value.(type) {
		case string:
			return []string{v}, true
		case []string:
			return v, true
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}
				out = append(out, s)
			}
			return out, true
		}
		return nil, false
	case ArgScores:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		out := make(map[string]int, len(m))
		for k, v := range m {
			f, ok := v.(float64)
			if !ok {
				return nil, false
			}
			out[k] = int(math.Round(f))
		}
		return out, true
	case ArgInt:
		switch v := value.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, false
			}
			return int(v), true
		case int:
			return v, true
		}
		return nil, false
	}
	return nil, false
}

// searchTool builds the definition of a retrieval tool over one corpus.
func searchTool(name, argName, tag string, corpus agenttypes.Corpus, description string) Definition {
	return Definition{
		Name:        name,
		Description: description,
		Args:        []ArgSpec{{Name: argName, Kind: ArgString, Required: true, Help: "search terms"}},
		build: func(args Args) (Call, error) {
			return SearchCall{Tool: name, Corpus: corpus, Tag: tag, Input: args.String(argName)}, nil
		},
	}
}

// NewSalesRegistry returns the registry of tools available to the sales agent.
// The ops delegation tool is included only when withOps is true.
func NewSalesRegistry(withOps bool) *Registry {
	r := NewRegistry()

	defs := []Definition{
		searchTool(ToolSearchCaseStudies, "keywords", "CASE STUDIES", agenttypes.CorpusCaseStudies,
			"Find past projects and client outcomes relevant to the lead."),
		searchTool(ToolSearchTechnical, "keywords", "TECHNICAL", agenttypes.CorpusTechnical,
			"Look up technologies, platforms and engineering capabilities."),
		searchTool(ToolSearchPricing, "keywords", "PRICING", agenttypes.CorpusPricing,
			"Look up engagement models, rates and pricing examples."),
		searchTool(ToolSearchProfile, "keywords", "COMPANY PROFILE", agenttypes.CorpusCompanyProfile,
			"Look up company facts: history, team, locations, certifications."),
		searchTool(ToolSearchKnowledgeBase, "query", "GENERAL KB", agenttypes.CorpusGeneral,
			"General search across all company knowledge."),
		{
			Name:        ToolUpdateContext,
			Description: "Record the conversation stage, buying signals, objections or qualification scores you detected.",
			Args: []ArgSpec{
				{Name: "stage", Kind: ArgString, Help: "opening, discovery, interest, objection_handling, closing or nurturing"},
				{Name: "stage_guidance", Kind: ArgString, Help: "advice for the next turns"},
				{Name: "buying_signals", Kind: ArgStringList, Help: "detected buying signals"},
				{Name: "objections", Kind: ArgStringList, Help: "detected objections"},
				{Name: "scores", Kind: ArgScores, Help: "qualification scores, e.g. {\"budget\": 3}"},
				{Name: "notes", Kind: ArgStringList, Help: "free-form notes"},
			},
			build: func(args Args) (Call, error) {
				call := ContextUpdateCall{Update: agenttypes.Guidance{
					Stage:      agenttypes.ConversationStage(strings.ToLower(strings.TrimSpace(args.String("stage")))),
					Advice:     args.String("stage_guidance"),
					Signals:    args.Strings("buying_signals"),
					Objections: args.Strings("objections"),
					Scores:     args.Scores("scores"),
					Notes:      args.Strings("notes"),
				}}
				if call.Update.IsZero() {
					return nil, &ArgumentError{Tool: ToolUpdateContext, Missing: []string{"at least one update"}}
				}
				return call, nil
			},
		},
		{
			Name:        ToolGenerateResponse,
			Description: "Send the full, final answer to the lead and end this turn.",
			Args:        []ArgSpec{{Name: "answer", Kind: ArgString, Required: true, Help: "the reply"}},
			Terminal:    true,
			build: func(args Args) (Call, error) {
				return RespondCall{Answer: args.String("answer")}, nil
			},
		},
		{
			Name:        ToolEndConversation,
			Description: "Close the conversation when the lead wants to stop.",
			Args:        []ArgSpec{{Name: "answer", Kind: ArgString, Required: true, Help: "the closing message"}},
			Terminal:    true,
			build: func(args Args) (Call, error) {
				return EndConversationCall{Answer: args.String("answer")}, nil
			},
		},
		{
			Name:        ToolUnactionable,
			Description: "Report that the request cannot be acted upon.",
			Args:        []ArgSpec{{Name: "reason", Kind: ArgString, Required: true, Help: "why"}},
			build: func(args Args) (Call, error) {
				return UnactionableCall{Reason: args.String("reason")}, nil
			},
		},
	}

	if withOps {
		defs = append(defs, Definition{
			Name:        ToolDelegateOps,
			Description: "Delegate an operational task (schedule a meeting, send an email, research, create a document).",
			Args:        []ArgSpec{{Name: "task", Kind: ArgString, Required: true, Help: "a complete description of the task"}},
			build: func(args Args) (Call, error) {
				return DelegateCall{Task: args.String("task")}, nil
			},
		})
	}

	for _, def := range defs {
		// definitions above are static and always valid
		_ = r.Register(def)
	}
	return r
}
