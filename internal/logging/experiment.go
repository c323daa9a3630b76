package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EXPERIMENT LOG - persisted audit trail of every oracle/tool exchange
// =============================================================================
//
// The experiment log is a single JSON document {"experiments": [entry, ...]}
// rewritten atomically (read-modify-write, rename) on every append. It is an
// audit trail, not best-effort: a write that fails schema validation is
// rejected, and an append failure is surfaced to the caller.

// ActionType standardizes what an agent was doing for a given exchange.
type ActionType string

const (
	ActionAnalysis   ActionType = "ANALYSIS"   // audit, reading, bug hunting
	ActionGeneration ActionType = "GENERATION" // new code/tests/docs
	ActionDebug      ActionType = "DEBUG"      // runtime error analysis
	ActionFix        ActionType = "FIX"        // applying corrections
)

// Status marks an exchange as successful or failed.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Entry is one recorded exchange. Details must always carry non-empty
// input_prompt and output_response values; everything else is free-form.
type Entry struct {
	ID        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	AgentName string                 `json:"agent_name"`
	ModelUsed string                 `json:"model_used"`
	Action    ActionType             `json:"action"`
	Details   map[string]interface{} `json:"details"`
	Status    Status                 `json:"status"`
}

// document is the on-disk shape of the experiment log.
type document struct {
	Experiments []Entry `json:"experiments"`
}

// ExperimentLog appends validated entries to the JSON experiment document.
// Safe for concurrent use.
type ExperimentLog struct {
	mu   sync.Mutex
	path string
}

// NewExperimentLog creates a log writing to path. The parent directory is
// created eagerly so the first append cannot fail on a missing directory.
func NewExperimentLog(path string) (*ExperimentLog, error) {
	if path == "" {
		return nil, fmt.Errorf("experiment log path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create experiment log directory: %w", err)
		}
	}
	return &ExperimentLog{path: path}, nil
}

// Path returns the log file location.
func (l *ExperimentLog) Path() string { return l.path }

// Details builds a details map with the two mandatory fields set.
func Details(inputPrompt, outputResponse string) map[string]interface{} {
	return map[string]interface{}{
		"input_prompt":    inputPrompt,
		"output_response": outputResponse,
	}
}

// Record validates and appends one exchange, returning the entry ID.
// Missing input_prompt or output_response is a schema violation that
// rejects the write; it never silently drops fields.
func (l *ExperimentLog) Record(agentName, modelUsed string, action ActionType, details map[string]interface{}, status Status) (string, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Format(time.RFC3339),
		AgentName: agentName,
		ModelUsed: modelUsed,
		Action:    action,
		Details:   details,
		Status:    status,
	}

	if err := ValidateEntry(entry); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.readLocked()
	if err != nil {
		return "", err
	}
	doc.Experiments = append(doc.Experiments, entry)

	if err := l.writeLocked(doc); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ValidateEntry enforces the experiment log schema.
func ValidateEntry(e Entry) error {
	switch e.Action {
	case ActionAnalysis, ActionGeneration, ActionDebug, ActionFix:
	default:
		return fmt.Errorf("invalid action %q: use ANALYSIS, GENERATION, DEBUG or FIX", e.Action)
	}
	if e.Status != StatusSuccess && e.Status != StatusFailure {
		return fmt.Errorf("invalid status %q: use SUCCESS or FAILURE", e.Status)
	}
	if e.AgentName == "" {
		return fmt.Errorf("agent_name must not be empty")
	}
	if e.Details == nil {
		return fmt.Errorf("details must not be nil")
	}
	for _, field := range []string{"input_prompt", "output_response"} {
		v, ok := e.Details[field]
		if !ok || v == nil || v == "" {
			return fmt.Errorf("experiment entry for agent %s is missing required detail %q", e.AgentName, field)
		}
	}
	return nil
}

// Entries returns a copy of all recorded entries.
func (l *ExperimentLog) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.readLocked()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(doc.Experiments))
	copy(out, doc.Experiments)
	return out, nil
}

// Stats summarizes the log by agent, action and status.
type Stats struct {
	Total    int
	ByAgent  map[string]int
	ByAction map[ActionType]int
	ByStatus map[Status]int
}

// Stats aggregates counters over all recorded entries.
func (l *ExperimentLog) Stats() (Stats, error) {
	entries, err := l.Entries()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		Total:    len(entries),
		ByAgent:  make(map[string]int),
		ByAction: make(map[ActionType]int),
		ByStatus: make(map[Status]int),
	}
	for _, e := range entries {
		s.ByAgent[e.AgentName]++
		s.ByAction[e.Action]++
		s.ByStatus[e.Status]++
	}
	return s, nil
}

// readLocked loads the document, tolerating a missing file and converting
// the legacy bare-array format. A corrupt file starts a fresh document
// rather than blocking all future audit writes.
func (l *ExperimentLog) readLocked() (*document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Experiments: []Entry{}}, nil
		}
		return nil, fmt.Errorf("failed to read experiment log: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && doc.Experiments != nil {
		return &doc, nil
	}

	// Legacy format: a bare array of entries.
	var legacy []Entry
	if err := json.Unmarshal(data, &legacy); err == nil {
		return &document{Experiments: legacy}, nil
	}

	Get(CategoryBoot).Warn("experiment log at %s was corrupt, starting fresh", l.path)
	return &document{Experiments: []Entry{}}, nil
}

// writeLocked rewrites the full document through a temp file + rename so a
// crash mid-write never leaves a truncated log behind.
func (l *ExperimentLog) writeLocked(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal experiment log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".experiment-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp experiment log: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write experiment log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp experiment log: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace experiment log: %w", err)
	}
	return nil
}
