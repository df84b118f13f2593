package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// LeadService resolves lead facts from a leads.json document keyed by lead id,
// and serves the company description every prompt includes.
type LeadService struct {
	leadsPath   string
	companyPath string
	initialized bool

	mu      sync.RWMutex
	leads   map[string]agenttypes.Lead
	company string
}

// NewLeadService creates a service reading leads from leadsPath and the company
// description from companyPath. companyPath may be empty.
func NewLeadService(leadsPath, companyPath string) *LeadService {
	return &LeadService{
		leadsPath:   leadsPath,
		companyPath: companyPath,
		leads:       make(map[string]agenttypes.Lead),
	}
}

// Name returns the service name "leads" for registration.
func (l *LeadService) Name() string {
	return "leads"
}

// Initialize loads the leads document and the company description.
func (l *LeadService) Initialize() error {
	if l.initialized {
		return nil
	}

	leads := make(map[string]agenttypes.Lead)
	data, err := os.ReadFile(l.leadsPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Leads file not found", "path", l.leadsPath)
	case err != nil:
		return fmt.Errorf("failed to read leads file: %w", err)
	default:
		if err := json.Unmarshal(data, &leads); err != nil {
			return fmt.Errorf("failed to parse leads file: %w", err)
		}
	}
	for id, lead := range leads {
		if lead.ID == "" {
			lead.ID = id
			leads[id] = lead
		}
	}

	var company string
	if l.companyPath != "" {
		data, err := os.ReadFile(l.companyPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read company file: %w", err)
		}
		company = strings.TrimSpace(string(data))
	}

	l.mu.Lock()
	l.leads = leads
	l.company = company
	l.initialized = true
	l.mu.Unlock()

	logger.ServiceOperation("leads", "initialize", "completed", "count", len(leads))
	return nil
}

// Lead returns the lead with the given id or an error wrapping ErrLeadNotFound.
func (l *LeadService) Lead(ctx context.Context, id string) (agenttypes.Lead, error) {
	if err := ctx.Err(); err != nil {
		return agenttypes.Lead{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	lead, ok := l.leads[id]
	if !ok {
		return agenttypes.Lead{}, fmt.Errorf("%w: %s", agenttypes.ErrLeadNotFound, id)
	}
	return lead, nil
}

// IDs returns the known lead ids in sorted order.
func (l *LeadService) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.leads))
	for id := range l.leads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Company returns the company description.
func (l *LeadService) Company() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.company
}
