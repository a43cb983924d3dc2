package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// DefaultSession labels entries recorded without an explicit session name.
const DefaultSession = "default"

// Entry is one answered question as recorded for later review. Source and
// page fields carry the pre-rendered citation strings from the answer record.
type Entry struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Source    string `json:"source"`
	Pages     string `json:"pages"`
	Timestamp string `json:"timestamp"`
	Session   string `json:"session"`
}

// Store keeps the answer history in a single flat JSON file. Writes rewrite
// the whole file; the history is small and append-rarely, so that is fine.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append records an entry, assigning an ID and the default session label when
// missing, and returns the stored entry.
func (s *Store) Append(e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Session == "" {
		e.Session = DefaultSession
	}

	entries, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	entries = append(entries, e)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Entry{}, err
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Entry{}, err
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Load returns all recorded entries, oldest first.
func (s *Store) Load() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// LoadSession returns only the entries recorded under the given session name.
func (s *Store) LoadSession(session string) ([]Entry, error) {
	if session == "" {
		session = DefaultSession
	}
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Session == session {
			out = append(out, e)
		}
	}
	return out, nil
}

// Sessions returns the sorted set of session names present in the history.
func (s *Store) Sessions() ([]string, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range all {
		name := e.Session
		if name == "" {
			name = DefaultSession
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) load() ([]Entry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
