package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AppState хранит состояние движка между запусками
type AppState struct {
	LastPush     time.Time            `json:"last_push"`
	LastPull     time.Time            `json:"last_pull"`
	LastPushOK   bool                 `json:"last_push_ok"`
	LastPullOK   bool                 `json:"last_pull_ok"`
	TaskLastRuns map[string]time.Time `json:"task_last_runs"`
}

// stateFile - AppState с сохранением в JSON-файл.
// Реализует scheduler.RunStore.
type stateFile struct {
	path  string
	mu    sync.Mutex
	state AppState
}

func loadStateFile(path string) (*stateFile, error) {
	sf := &stateFile{path: path, state: AppState{TaskLastRuns: map[string]time.Time{}}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return sf, nil
	}
	if err != nil {
		return sf, fmt.Errorf("ошибка чтения состояния: %w", err)
	}

	if err := json.Unmarshal(data, &sf.state); err != nil {
		// частично разобранное состояние не используем
		sf.state = AppState{TaskLastRuns: map[string]time.Time{}}
		return sf, fmt.Errorf("ошибка парсинга состояния: %w", err)
	}
	if sf.state.TaskLastRuns == nil {
		sf.state.TaskLastRuns = map[string]time.Time{}
	}

	return sf, nil
}

func (s *stateFile) Snapshot() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	out.TaskLastRuns = make(map[string]time.Time, len(s.state.TaskLastRuns))
	for k, v := range s.state.TaskLastRuns {
		out.TaskLastRuns[k] = v
	}
	return out
}

func (s *stateFile) Update(fn func(st *AppState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	return s.save()
}

func (s *stateFile) LastRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.state.TaskLastRuns[name]
	return t, ok
}

func (s *stateFile) SetLastRun(name string, t time.Time) error {
	return s.Update(func(st *AppState) {
		st.TaskLastRuns[name] = t
	})
}

// save должен вызываться под s.mu
func (s *stateFile) save() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}
