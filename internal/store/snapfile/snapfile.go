// Package snapfile persists the full economy state graph as a single
// pretty-printed JSON file. Writes go to a temporary file in the same
// directory and are renamed over the target, so a crash mid-write never
// corrupts the previously committed snapshot. Saves are debounced: command
// bursts coalesce into one write and the in-memory state stays authoritative
// for the lifetime of the process.
package snapfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MarkoPoloResearchLab/coinbot/pkg/economy"
	"go.uber.org/zap"
)

const (
	snapshotFileMode = 0o644
	tempFilePattern  = ".snapshot-*.tmp"
)

// ErrCorruptSnapshot marks an unreadable or invariant-violating file.
// Startup treats it as fatal rather than overwriting the data.
var ErrCorruptSnapshot = errors.New("corrupt snapshot file")

// SnapshotSource produces the current state to persist. The store calls it
// when the debounce timer fires, so the last state inside the window wins.
type SnapshotSource func() economy.Snapshot

// Store serializes snapshots to a single durable file.
type Store struct {
	path     string
	source   SnapshotSource
	logger   *zap.Logger
	debounce *Debouncer
}

// Option configures a Store.
type Option func(*Store)

// WithLogger wires a zap logger for write failures and flush events.
func WithLogger(logger *zap.Logger) Option {
	return func(store *Store) {
		store.logger = logger
	}
}

// WithDebouncer overrides the default debouncer, mainly so tests can drive
// the timer deterministically.
func WithDebouncer(debouncer *Debouncer) Option {
	return func(store *Store) {
		store.debounce = debouncer
	}
}

// New wires a Store for the given file path and snapshot source.
func New(path string, source SnapshotSource, options ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	store := &Store{
		path:   path,
		source: source,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	if store.debounce == nil {
		store.debounce = NewDebouncer(DefaultDebounceWindow)
	}
	store.debounce.flush = store.flush
	return store, nil
}

// Load reads the durable file. A missing file initializes an empty snapshot
// and persists it immediately so subsequent reads are well-formed. Malformed
// content is reported as ErrCorruptSnapshot, never silently discarded.
func (store *Store) Load() (economy.Snapshot, error) {
	raw, err := os.ReadFile(store.path)
	if errors.Is(err, os.ErrNotExist) {
		snapshot := economy.NewSnapshot()
		if saveErr := store.Save(snapshot); saveErr != nil {
			return economy.Snapshot{}, saveErr
		}
		return snapshot, nil
	}
	if err != nil {
		return economy.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot economy.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return economy.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := snapshot.Validate(); err != nil {
		return economy.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snapshot.UserBalances == nil {
		snapshot.UserBalances = map[string]int64{}
	}
	if snapshot.Rewards == nil {
		snapshot.Rewards = map[string]economy.RewardSnapshot{}
	}
	if snapshot.UserLangs == nil {
		snapshot.UserLangs = map[string]string{}
	}
	return snapshot, nil
}

// Save writes the snapshot durably via write-to-temp-then-rename.
func (store *Store) Save(snapshot economy.Snapshot) error {
	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	directory := filepath.Dir(store.path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tempFile, err := os.CreateTemp(directory, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tempPath := tempFile.Name()
	if _, err := tempFile.Write(encoded); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tempPath, snapshotFileMode); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tempPath, store.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ScheduleSave requests eventual persistence. Repeated requests inside the
// debounce window coalesce into a single write; the caller never blocks.
func (store *Store) ScheduleSave() {
	store.debounce.Schedule()
}

// Close stops any pending timer and performs one final synchronous save so
// shutdown never loses the tail of the debounce window.
func (store *Store) Close() error {
	store.debounce.Stop()
	return store.Save(store.source())
}

func (store *Store) flush() {
	snapshot := store.source()
	if err := store.Save(snapshot); err != nil {
		// In-memory state stays authoritative; a later write catches up.
		store.logger.Error("snapshot write failed", zap.String("path", store.path), zap.Error(err))
		return
	}
	store.logger.Debug("snapshot written", zap.String("path", store.path))
}
