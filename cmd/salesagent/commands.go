package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"

	"salesagent/internal/agent"
	"salesagent/internal/logger"
	"salesagent/internal/session"
	"salesagent/internal/version"
	"salesagent/pkg/agenttypes"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var leadID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with a lead",
		Long:  `Open a conversation with the lead and read their messages from the terminal. Type 'exit' to leave.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runChat(opts, leadID)
		},
	}
	cmd.Flags().StringVar(&leadID, "lead", "", "Lead id from leads.json")
	_ = cmd.MarkFlagRequired("lead")
	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var leadID string
	cmd := &cobra.Command{
		Use:   "run <script.txt>",
		Short: "Run a scripted conversation",
		Long: `Run a conversation non-interactively. Each non-empty line of the script is one lead message;
lines starting with '#' are comments. The run stops early if the agent ends the conversation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, a, err := startSession(cmd.Context(), opts, leadID)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runScript(cmd.Context(), rt, a, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&leadID, "lead", "", "Lead id from leads.json")
	_ = cmd.MarkFlagRequired("lead")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		leadID string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <script.txt>",
		Short: "Run a scripted conversation and export the session state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, a, err := startSession(cmd.Context(), opts, leadID)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := runScript(cmd.Context(), rt, a, args[0], io.Discard); err != nil {
				return err
			}
			if output != "" {
				if err := a.State().ExportFile(output); err != nil {
					return err
				}
				logger.Info("Session exported", "path", output)
				return nil
			}

			data, err := json.MarshalIndent(a.State().Snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&leadID, "lead", "", "Lead id from leads.json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the snapshot to a file instead of stdout")
	_ = cmd.MarkFlagRequired("lead")
	return cmd
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <session.json>",
		Short: "Print a conversation exported with 'export -o'",
		Long:  `Restore an exported session and print its transcript, turn summaries and final stage.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := session.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			checkSnapshotVersion(snap.Version)

			st := session.Restore(snap)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s with %s (%s)\n", st.ID, st.Lead.Name, st.Lead.Company)
			for _, u := range st.Transcript() {
				speaker := "Agent"
				if u.Speaker == agenttypes.SpeakerUser {
					speaker = "Lead"
				}
				fmt.Fprintf(out, "%s: %s\n", speaker, u.Text)
			}

			fmt.Fprintln(out, "\nTurns:")
			fmt.Fprintln(out, st.RecentSummary(st.TurnCounter()))
			if stage := st.Guidance().Stage; stage != "" {
				fmt.Fprintf(out, "Stage: %s\n", stage)
			}
			if st.Terminated() {
				fmt.Fprintln(out, "[conversation ended]")
			}
			return nil
		},
	}
}

// checkSnapshotVersion warns when a session comes from a newer or unknown build.
func checkSnapshotVersion(snapVersion string) {
	if snapVersion == "" {
		return
	}
	cmp, err := version.CompareVersions(snapVersion, version.GetVersion())
	if err != nil {
		logger.Warn("Session file has an unreadable version", "version", snapVersion, "error", err)
		return
	}
	if cmp > 0 {
		logger.Warn("Session was exported by a newer salesagent", "session_version", snapVersion, "version", version.GetVersion())
	}
}

func newLeadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lead [id]",
		Short: "Show a lead and its long-term memory, or list leads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := initializeServices(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, id := range rt.leads.IDs() {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			info, err := agent.LookupLead(cmd.Context(), rt.leads, rt.memory, args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode lead: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
}

// startSession initializes services and opens a session for leadID.
func startSession(ctx context.Context, opts *globalOptions, leadID string) (*agentRuntime, *agent.Agent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := initializeServices(opts)
	if err != nil {
		return nil, nil, err
	}
	a, err := rt.newAgent(ctx, leadID)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	logger.Info("Session started", "lead", leadID, "version", version.GetVersion())
	return rt, a, nil
}

// readScript returns the lead messages of a script file.
func readScript(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return lines, nil
}

// runScript opens the session and plays every script line, printing the exchange to out.
func runScript(ctx context.Context, rt *agentRuntime, a *agent.Agent, path string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lines, err := readScript(path)
	if err != nil {
		return err
	}

	opening, err := a.Open(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Agent: %s\n", rt.render(opening))

	for _, line := range lines {
		fmt.Fprintf(out, "Lead: %s\n", line)
		reply, err := a.Advance(ctx, line)
		if reply != "" {
			fmt.Fprintf(out, "Agent: %s\n", rt.render(reply))
		}
		if err != nil {
			return err
		}
		if a.Terminated() {
			fmt.Fprintln(out, "[conversation ended]")
			break
		}
	}
	return nil
}

// runChat runs the interactive shell for one lead.
func runChat(opts *globalOptions, leadID string) error {
	ctx := context.Background()
	rt, a, err := startSession(ctx, opts, leadID)
	if err != nil {
		return err
	}
	defer rt.Close()

	opening, err := a.Open(ctx)
	if err != nil {
		return err
	}

	sh := ishell.New()
	sh.SetPrompt("lead> ")
	sh.DeleteCmd("help")

	lead := a.LeadInfo().Lead
	sh.Println(fmt.Sprintf("%s - conversation with %s (%s, %s)", version.GetFormattedVersion(), lead.Name, lead.Role, lead.Company))
	sh.Println("Type your messages as the lead, or 'exit' to quit.")
	sh.Println("Agent: " + rt.render(opening))

	sh.AddCmd(&ishell.Cmd{
		Name: "guidance",
		Help: "show the current sales guidance",
		Func: func(c *ishell.Context) {
			data, _ := json.MarshalIndent(a.State().Guidance(), "", "  ")
			c.Println(string(data))
		},
	})

	sh.NotFound(func(c *ishell.Context) {
		input := strings.TrimSpace(strings.Join(c.RawArgs, " "))
		if input == "" {
			return
		}

		reply, err := a.Advance(ctx, input)
		if reply != "" {
			c.Println("Agent: " + rt.render(reply))
		}
		switch {
		case errors.Is(err, agent.ErrEmptyMessage):
		case err != nil:
			c.Println("Error: " + err.Error())
		}
		if a.Terminated() {
			c.Println("[conversation ended]")
			c.Stop()
		} else if a.Failed() != nil {
			c.Stop()
		}
	})

	sh.Run()
	return nil
}
