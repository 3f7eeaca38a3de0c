package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sriram-PR/doc-toc/pkg/orchestrate"
)

const stateFileName = "watch_state.json"

// SiteState is the outcome of the last scheduled build of a site
type SiteState struct {
	LastRunTime    time.Time `json:"last_run_time"`
	LastRunSuccess bool      `json:"last_run_success"`
	BuildID        string    `json:"build_id,omitempty"`
	PagesWritten   int       `json:"pages_written"`
	PagesSkipped   int       `json:"pages_skipped"`
	PagesFailed    int       `json:"pages_failed"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

type watchState struct {
	Sites     map[string]SiteState `json:"sites"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// StateManager keeps per-site watch state in state_dir/watch_state.json
type StateManager struct {
	stateDir  string
	statePath string

	mu    sync.RWMutex
	state watchState
}

func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state:     watchState{Sites: make(map[string]SiteState)},
	}
}

// Load reads the state file. A missing file means nothing has run yet.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = watchState{Sites: make(map[string]SiteState)}
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var loaded watchState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if loaded.Sites == nil {
		loaded.Sites = make(map[string]SiteState)
	}
	m.state = loaded
	return nil
}

func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()
	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func (m *StateManager) GetSiteState(siteKey string) (SiteState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Sites[siteKey]
	return state, ok
}

// RecordResult stores the outcome of one site build, stamped with the current time
func (m *StateManager) RecordResult(result orchestrate.SiteResult) {
	state := SiteState{
		LastRunTime:    time.Now(),
		LastRunSuccess: result.Success(),
	}
	if result.Report != nil {
		state.BuildID = result.Report.BuildID
		state.PagesWritten = result.Report.PagesWritten
		state.PagesSkipped = result.Report.PagesSkipped
		state.PagesFailed = result.Report.PagesFailed
	}
	if result.Error != nil {
		state.ErrorMessage = result.Error.Error()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Sites[result.SiteKey] = state
}

// ShouldRun reports whether interval has elapsed since the site last ran
func (m *StateManager) ShouldRun(siteKey string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Sites[siteKey]
	if !ok {
		return true
	}
	return time.Since(state.LastRunTime) >= interval
}

// GetNextRunTime returns now for sites that never ran
func (m *StateManager) GetNextRunTime(siteKey string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Sites[siteKey]
	if !ok {
		return time.Now()
	}
	return state.LastRunTime.Add(interval)
}

// GetAllSiteStates returns a copy of every recorded site state
func (m *StateManager) GetAllSiteStates() map[string]SiteState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]SiteState, len(m.state.Sites))
	for k, v := range m.state.Sites {
		result[k] = v
	}
	return result
}
