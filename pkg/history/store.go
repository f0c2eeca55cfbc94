package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"crosswallet/pkg/monitor"

	"github.com/google/uuid"
)

const DefaultStorageFileName = ".crosswallet-history.json"

// Entry is one locally recorded swap.
type Entry struct {
	ID             string    `json:"id"`
	TxHash         string    `json:"txHash"`
	DepositAddress string    `json:"depositAddress"`
	FromToken      string    `json:"fromToken"`
	FromChain      string    `json:"fromChain"`
	ToToken        string    `json:"toToken"`
	ToChain        string    `json:"toChain"`
	AmountIn       string    `json:"amountIn"`
	AmountOut      string    `json:"amountOut,omitempty"`
	Recipient      string    `json:"recipient"`
	Status         string    `json:"status"`
	OutboundTxHash string    `json:"outboundTxHash,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Store persists swap history to a local JSON file. Safe for concurrent use.
type Store struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]*Entry
}

type fileFormat struct {
	Swaps map[string]*Entry `json:"swaps"`
}

// NewStore opens (or creates on first save) the history file. An empty
// filePath defaults to the user's home directory.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	store := &Store{
		filePath: filePath,
		entries:  make(map[string]*Entry),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.entries = file.Swaps
	if s.entries == nil {
		s.entries = make(map[string]*Entry)
	}

	return nil
}

// save writes the history file atomically. Callers must hold at least a
// read lock.
func (s *Store) save() error {
	file := fileFormat{Swaps: s.entries}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Add records a new swap. An empty ID gets a generated one. Returns the
// stored entry.
func (s *Store) Add(entry *Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if _, exists := s.entries[entry.ID]; exists {
		return nil, fmt.Errorf("history entry '%s' already exists", entry.ID)
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = string(monitor.StatusPending)
	}

	s.entries[entry.ID] = entry
	if err := s.save(); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("history entry '%s' not found", id)
	}
	return entry, nil
}

// FindByTxHash retrieves the entry with the given deposit transaction hash.
func (s *Store) FindByTxHash(txHash string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.TxHash == txHash {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("no history entry for tx %s", txHash)
}

// SetTxHash attaches the deposit transaction hash to an entry once the
// deposit has been broadcast.
func (s *Store) SetTxHash(id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		return fmt.Errorf("history entry '%s' not found", id)
	}
	entry.TxHash = txHash
	entry.UpdatedAt = time.Now().UTC()
	return s.save()
}

// UpdateFromRecord syncs an entry with the latest monitor state of its swap.
// Unknown transaction hashes are ignored.
func (s *Store) UpdateFromRecord(record *monitor.SwapRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.TxHash != record.TxHash {
			continue
		}
		entry.Status = string(record.Status)
		if record.RouterData.OutboundTxHash != "" {
			entry.OutboundTxHash = record.RouterData.OutboundTxHash
		}
		entry.UpdatedAt = time.Now().UTC()
		return s.save()
	}
	return nil
}

// List returns all entries, newest first.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}

// ListByStatus returns entries with the given status, newest first.
func (s *Store) ListByStatus(status string) []*Entry {
	all := s.List()
	filtered := make([]*Entry, 0)
	for _, entry := range all {
		if entry.Status == status {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// Count returns the number of recorded swaps.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GetFilePath returns the history file path.
func (s *Store) GetFilePath() string {
	return s.filePath
}
