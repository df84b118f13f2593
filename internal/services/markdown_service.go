package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"salesagent/internal/logger"
)

// MarkdownService renders agent replies for the terminal using Glamour.
type MarkdownService struct {
	initialized bool
	plain       bool
	wordWrap    int
	renderer    *glamour.TermRenderer
}

// NewMarkdownService creates a new MarkdownService. In plain mode replies are
// returned unchanged, which keeps test-mode output stable.
func NewMarkdownService(plain bool) *MarkdownService {
	return &MarkdownService{plain: plain, wordWrap: 80}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize creates the terminal renderer.
func (m *MarkdownService) Initialize() error {
	if m.initialized {
		return nil
	}
	if !m.plain {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.wordWrap),
		)
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		m.renderer = renderer
	}

	m.initialized = true
	logger.Debug("MarkdownService initialized successfully", "plain", m.plain)
	return nil
}

// Render renders markdown content to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	if m.plain {
		return markdown, nil
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return strings.TrimRight(rendered, "\n"), nil
}

// RenderWithStyle renders markdown content with a specific Glamour style
// ("dark", "light", "notty", "ascii"). Unknown styles fall back to Render.
func (m *MarkdownService) RenderWithStyle(markdown string, style string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(m.wordWrap),
	)
	if err != nil {
		logger.Debug("Failed to create renderer with style, falling back to default", "style", style, "error", err)
		return m.Render(markdown)
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown with style '%s': %w", style, err)
	}

	return strings.TrimRight(rendered, "\n"), nil
}
