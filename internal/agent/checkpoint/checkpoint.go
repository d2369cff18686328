// Package checkpoint persists the commit cursor marking the last fully
// processed point in the keyhouse history.
package checkpoint

import (
	"os"
	"strings"

	"github.com/keyhouse-ops/watchdog/internal/utils"
)

// Store reads and writes the checkpoint file. It assumes a single writer:
// the driver holds an advisory lock for the duration of a run.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the persisted commit id, or "" when the store was never
// written or holds only whitespace. Both mean the system is uninitialized
// and must perform a full resync.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// Save replaces the checkpoint atomically. A failed save leaves the previous
// value readable.
func (s *Store) Save(commit string) error {
	return utils.WriteFileAtomic(s.path, []byte(commit), 0o644)
}
