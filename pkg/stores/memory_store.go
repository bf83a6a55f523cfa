package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	v "github.com/cohesivestack/valgo"
	"github.com/theapemachine/bridge-go/pkg/errors"
)

const (
	maxMemoryContent = 10000
	maxMemoryEntries = 1000
)

/*
MemoryEntry is one item in the importance-ranked memory log.  Entries are
append-only: once created they are never individually mutated, only bulk
deleted by agent.
*/
type MemoryEntry struct {
	ID         string  `json:"id"`
	Agent      string  `json:"agent"`
	Content    string  `json:"content"`
	Timestamp  int64   `json:"timestamp"`
	Importance float64 `json:"importance"`
}

/*
MemoryStore owns the memory-log file.  Same durability model as the other
stores: whole-document load on every read, whole-document rewrite on every
mutation, corruption treated as an empty log.
*/
type MemoryStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

func NewMemoryStore(path string, options ...MemoryStoreOption) *MemoryStore {
	store := &MemoryStore{
		path: path,
		now:  time.Now,
	}

	for _, option := range options {
		option(store)
	}

	return store
}

// WithClock overrides the time source, used by tests to control timestamps.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(store *MemoryStore) {
		store.now = now
	}
}

func (store *MemoryStore) load() []MemoryEntry {
	raw, err := os.ReadFile(store.path)

	if err != nil {
		return []MemoryEntry{}
	}

	var entries []MemoryEntry

	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Warn("memory file is corrupt, starting empty", "path", store.path, "error", err)
		return []MemoryEntry{}
	}

	return entries
}

func (store *MemoryStore) save(entries []MemoryEntry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")

	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to encode memory log: %v", err)
	}

	if err := os.WriteFile(store.path, raw, 0644); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to write %s: %v", store.path, err)
	}

	return nil
}

/*
Add appends a new entry and enforces the retention bound: when the log would
exceed 1000 entries it is re-sorted newest first and truncated, so the 1000
most recent timestamps survive.  Importance is clamped to [0,1].
*/
func (store *MemoryStore) Add(agent, content string, importance float64) (MemoryEntry, error) {
	val := v.Is(
		v.String(agent, "agent").Not().Blank(),
		v.String(content, "content").Not().Blank().MaxLength(maxMemoryContent),
	)

	if !val.Valid() {
		return MemoryEntry{}, errors.ErrValidation.WithMessagef("%v", val.Error())
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()

	entry := MemoryEntry{
		ID:         fmt.Sprintf("mem_%d", now.UnixNano()),
		Agent:      agent,
		Content:    content,
		Timestamp:  now.Unix(),
		Importance: min(max(importance, 0), 1),
	}

	entries := append(store.load(), entry)

	if len(entries) > maxMemoryEntries {
		slices.SortStableFunc(entries, func(a, b MemoryEntry) int {
			switch {
			case a.Timestamp > b.Timestamp:
				return -1
			case a.Timestamp < b.Timestamp:
				return 1
			default:
				return 0
			}
		})
		entries = entries[:maxMemoryEntries]
	}

	return entry, store.save(entries)
}

/*
Query returns at most topK entries for the given agent (case-insensitive
match), ordered by importance descending, ties broken by timestamp
descending.
*/
func (store *MemoryStore) Query(agent string, topK int) []MemoryEntry {
	store.mu.Lock()
	defer store.mu.Unlock()

	matches := []MemoryEntry{}

	for _, entry := range store.load() {
		if strings.EqualFold(entry.Agent, agent) {
			matches = append(matches, entry)
		}
	}

	slices.SortStableFunc(matches, func(a, b MemoryEntry) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches
}

/*
Clear removes every entry belonging to the given agent (case-insensitive)
and returns how many were dropped.
*/
func (store *MemoryStore) Clear(agent string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entries := store.load()
	kept := slices.DeleteFunc(entries, func(entry MemoryEntry) bool {
		return strings.EqualFold(entry.Agent, agent)
	})

	removed := len(entries) - len(kept)

	return removed, store.save(kept)
}
