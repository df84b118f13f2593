// Package prompts assembles the prompt documents sent to the language model.
// Every builder is a pure function of its inputs so identical session state
// always yields an identical prompt.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"salesagent/internal/session"
	"salesagent/internal/tools"
	"salesagent/pkg/agenttypes"
)

// Persona returns the agent's core identity statement.
func Persona(p agenttypes.PersonaConfig) string {
	return fmt.Sprintf("You are '%s', a sales lead assistant at %s. Your persona is professional, confident, and consultative. "+
		"Your primary goal is to understand the lead's challenges and map them to %s's solutions. You think step-by-step. "+
		"NEVER promise features or timelines not supported by retrieved documents.", p.AgentName, p.CompanyName, p.CompanyName)
}

// Opening builds the prompt that produces the agent's first message.
func Opening(st *session.State, p agenttypes.PersonaConfig) string {
	var b strings.Builder
	b.WriteString(Persona(p))
	b.WriteString("\n---\n")
	writeLead(&b, st.Lead)
	writeSection(&b, "COMPANY BASIC DETAILS", st.Company)
	if !st.Memory.IsEmpty() {
		writeSection(&b, "Summary of Past Interactions", memorySummary(st.Memory))
	}
	b.WriteString("\n---\n")
	b.WriteString("**Your Task:**\n")
	b.WriteString("Write the opening message of a sales conversation with this lead. Greet them by name, introduce yourself and ")
	b.WriteString("your company in one sentence, reference their role or industry, and end with one open discovery question. ")
	b.WriteString("If there were past interactions, acknowledge them briefly. Reply with the message text only, no JSON and no formatting.\n")
	return b.String()
}

// Reasoning builds the prompt for one reasoning step. The digest covers the last
// recentTurns finalized turns.
func Reasoning(st *session.State, p agenttypes.PersonaConfig, registry *tools.Registry, recentTurns int) string {
	var b strings.Builder
	b.WriteString(Persona(p))
	b.WriteString("\n---\n")

	writeLead(&b, st.Lead)
	writeSection(&b, "COMPANY BASIC DETAILS", st.Company)

	if g := st.Guidance(); !g.IsZero() {
		writeSection(&b, "Current Sales Guidance", renderGuidance(g))
	}
	if !st.Memory.IsEmpty() {
		writeSection(&b, "Summary of Past Interactions", memorySummary(st.Memory))
	}

	if transcript := st.Transcript(); len(transcript) > 0 {
		b.WriteString("\n### Current Conversation History:\n")
		for _, u := range transcript {
			fmt.Fprintf(&b, "%s: %s\n", speakerLabel(u.Speaker), u.Text)
		}
	}

	if snippets := st.Snippets(); len(snippets) > 0 {
		b.WriteString("\n### Retrieved Information from Knowledge Base:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	writeSection(&b, "Recent Turns", st.RecentSummary(recentTurns))

	if actions := st.CurrentActions(); len(actions) > 0 {
		b.WriteString("\n### Actions Taken So Far This Turn:\n")
		for _, a := range actions {
			b.WriteString(RenderAction(a))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n---\n")
	if last, ok := st.LastUtterance(); ok && last.Speaker == agenttypes.SpeakerUser {
		fmt.Fprintf(&b, "\n### Current User Query:\n%s\n", last.Text)
	}

	b.WriteString("\n---\n")
	b.WriteString(reasoningInstructions)
	b.WriteString("\n**Available Actions:**\n")
	b.WriteString(Catalogue(registry))
	b.WriteString("\nYour output MUST contain exactly one fenced ```json block of the form ")
	b.WriteString("{\"thought\": \"...\", \"action\": {\"tool\": \"<tool name>\", ...arguments}}.\n")
	return b.String()
}

const reasoningInstructions = `**Your Task:**
Based on the User Query and all the context provided, decide on the single best next action.

**Your Golden Rule: Prioritize Facts Over Generation.**
Provide answers grounded in verified information. Do not answer from memory if the information could exist in the company's knowledge base.

**Decision Process:**
1. Analyze the Current User Query and the actions already taken this turn.
2. If the question asks for specific company information (case studies, technical capabilities, pricing, company facts), use the matching search tool first.
3. If a search already returned what you need, or the message is conversational, use generate_response.
4. If you detect a stage change, buying signal, objection or qualification evidence, you may record it with update_context.
5. If the lead wants to end the conversation, use end_conversation.
6. Never repeat a search that already failed or returned the same result this turn.
`

// Catalogue renders the tool definitions of a registry for inclusion in a prompt.
func Catalogue(registry *tools.Registry) string {
	var b strings.Builder
	for i, def := range registry.Definitions() {
		fmt.Fprintf(&b, "%d. `%s`: %s\n", i+1, def.Name, def.Description)
		for _, arg := range def.Args {
			req := "optional"
			if arg.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "   - %s (%s, %s): %s\n", arg.Name, arg.Kind, req, arg.Help)
		}
	}
	return b.String()
}

// Guidance builds the prompt for the periodic guidance step.
func Guidance(st *session.State, p agenttypes.PersonaConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior sales coach reviewing a live conversation between %s (%s) and a lead.\n", p.AgentName, p.CompanyName)
	b.WriteString("\n---\n")
	writeLead(&b, st.Lead)

	b.WriteString("\n### Conversation So Far:\n")
	for _, u := range st.Transcript() {
		fmt.Fprintf(&b, "%s: %s\n", speakerLabel(u.Speaker), u.Text)
	}

	g := st.Guidance()
	if g.IsZero() {
		writeSection(&b, "Previous Guidance", "None yet.")
	} else {
		writeSection(&b, "Previous Guidance", renderGuidance(g))
	}

	b.WriteString("\n---\n")
	b.WriteString("Assess the conversation stage (opening, discovery, interest, objection_handling, closing, nurturing), ")
	b.WriteString("score the lead's qualification from 0 to 5 on budget, authority, need and timeline, and list buying signals and objections.\n")
	b.WriteString("Respond with a single ```json block:\n")
	b.WriteString(`{"stage": "...", "stage_guidance": "advice for the next turns", "lead_qualification_score": {"budget": 0, "authority": 0, "need": 0, "timeline": 0}, "buying_signals_detected": [], "detected_objections": []}`)
	b.WriteString("\n")
	return b.String()
}

// Summary builds the prompt that summarizes a finished conversation for long-term memory.
func Summary(st *session.State) string {
	var b strings.Builder
	b.WriteString("Summarize the following sales conversation in three sentences or fewer. ")
	b.WriteString("Mention the lead's interests, concerns and any agreed next step.\n\n")
	writeLead(&b, st.Lead)
	b.WriteString("\n### Conversation:\n")
	for _, u := range st.Transcript() {
		fmt.Fprintf(&b, "%s: %s\n", speakerLabel(u.Speaker), u.Text)
	}
	writeSection(&b, "Turn Digest", st.RecentSummary(st.TurnCounter()))
	b.WriteString("\nReply with the summary text only.\n")
	return b.String()
}

// Ops builds the prompt for the operations agent handling a delegated task.
func Ops(task string, registry *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You are an operations assistant supporting a sales team. You execute exactly one operational action per request.\n")
	b.WriteString("\n### Delegated Task:\n")
	b.WriteString(task)
	b.WriteString("\n\n### Available Tools:\n")
	b.WriteString(Catalogue(registry))
	b.WriteString("\nIf the task lacks the information a tool needs, or no tool fits, use report_task_unactionable.\n")
	b.WriteString("Respond with a single ```json block: {\"thought\": \"...\", \"action\": {\"tool\": \"<tool name>\", ...arguments}}\n")
	return b.String()
}

// RenderAction formats one action as a single prompt line.
func RenderAction(a agenttypes.Action) string {
	d := a.Details
	switch a.Type {
	case agenttypes.ActionUserQuery:
		return fmt.Sprintf("- [user_query] %s", d.Query)
	case agenttypes.ActionAgentOpening:
		return fmt.Sprintf("- [agent_opening] %s", d.AgentResponse)
	case agenttypes.ActionLLMReasoning:
		if d.Error != "" {
			return fmt.Sprintf("- [llm_reasoning] (failed) %s", d.Error)
		}
		return fmt.Sprintf("- [llm_reasoning] %s", oneLine(d.ReasoningOutput, 300))
	case agenttypes.ActionToolExecution:
		return fmt.Sprintf("- [tool_execution] %s(%s) -> %s", d.Tool, d.Input, oneLine(d.Result, 300))
	case agenttypes.ActionContextUpdate:
		return fmt.Sprintf("- [context_update] %s", renderUpdates(d.Updates))
	case agenttypes.ActionError:
		if d.AttemptedTool != "" {
			return fmt.Sprintf("- [error:%s] %s (tool: %s)", d.ErrorKind, d.Error, d.AttemptedTool)
		}
		return fmt.Sprintf("- [error:%s] %s", d.ErrorKind, d.Error)
	case agenttypes.ActionFinalResponse:
		return fmt.Sprintf("- [final_response] %s", d.Response)
	default:
		return fmt.Sprintf("- [%s]", a.Type)
	}
}

func writeLead(b *strings.Builder, lead agenttypes.Lead) {
	b.WriteString("### LEAD BASIC DETAILS:\n")
	fmt.Fprintf(b, "Name: %s\n", lead.Name)
	if lead.Role != "" {
		fmt.Fprintf(b, "Role: %s\n", lead.Role)
	}
	if lead.Company != "" {
		fmt.Fprintf(b, "Company: %s\n", lead.Company)
	}
	if lead.Industry != "" {
		fmt.Fprintf(b, "Industry: %s\n", lead.Industry)
	}
	if lead.TechStackPreference != "" {
		fmt.Fprintf(b, "Tech stack preference: %s\n", lead.TechStackPreference)
	}
	keys := make([]string, 0, len(lead.Extra))
	for k := range lead.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s: %v\n", k, lead.Extra[k])
	}
}

func writeSection(b *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(b, "\n### %s:\n%s\n", title, strings.TrimSpace(body))
}

func memorySummary(m agenttypes.MemoryRecord) string {
	if m.Summary != "" {
		return m.Summary
	}
	return "No summary available."
}

func renderGuidance(g agenttypes.Guidance) string {
	var lines []string
	if g.Stage != "" {
		lines = append(lines, "Stage: "+string(g.Stage))
	}
	if g.Advice != "" {
		lines = append(lines, "Guidance: "+g.Advice)
	}
	if len(g.Scores) > 0 {
		keys := make([]string, 0, len(g.Scores))
		for k := range g.Scores {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		scores := make([]string, 0, len(keys))
		for _, k := range keys {
			scores = append(scores, fmt.Sprintf("%s=%d", k, g.Scores[k]))
		}
		lines = append(lines, "Qualification scores: "+strings.Join(scores, ", "))
	}
	if len(g.Signals) > 0 {
		lines = append(lines, "Buying signals: "+strings.Join(g.Signals, "; "))
	}
	if len(g.Objections) > 0 {
		lines = append(lines, "Objections: "+strings.Join(g.Objections, "; "))
	}
	if len(g.Notes) > 0 {
		lines = append(lines, "Notes: "+strings.Join(g.Notes, "; "))
	}
	return strings.Join(lines, "\n")
}

func renderUpdates(updates map[string]any) string {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, updates[k]))
	}
	return strings.Join(parts, ", ")
}

func speakerLabel(s agenttypes.Speaker) string {
	switch s {
	case agenttypes.SpeakerAgent:
		return "Agent"
	case agenttypes.SpeakerUser:
		return "User"
	default:
		return string(s)
	}
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}
