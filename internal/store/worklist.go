package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/model"
)

// WorkList is the JSON array of destinations a job reads and rewrites in
// place. The first Save of a process backs the original file up once.
type WorkList struct {
	path   string
	backup string

	mu       sync.Mutex
	backedUp bool
}

// NewWorkList returns a WorkList for path.
func NewWorkList(path string) *WorkList {
	return &WorkList{path: path, backup: BackupPath(path)}
}

// BackupPath maps places.json to places_backup.json.
func BackupPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_backup" + ext
}

// Path returns the work list file.
func (w *WorkList) Path() string { return w.path }

// Load reads every destination from the file.
func (w *WorkList) Load() ([]model.Destination, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read work list %s", w.path)
	}
	var items []model.Destination
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrapf(err, "store: parse work list %s", w.path)
	}
	return items, nil
}

// Save writes items atomically, taking the one-time backup first if no
// backup exists yet.
func (w *WorkList) Save(items []model.Destination) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureBackup(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: encode work list")
	}
	return WriteFileAtomic(w.path, data, 0o644)
}

func (w *WorkList) ensureBackup() error {
	if w.backedUp {
		return nil
	}

	exists, err := fileExists(w.backup)
	if err != nil {
		return err
	}
	if !exists {
		src, err := fileExists(w.path)
		if err != nil {
			return err
		}
		if src {
			if err := copyFile(w.path, w.backup); err != nil {
				return eris.Wrap(err, "store: backup work list")
			}
			zap.L().Info("work list backed up", zap.String("backup", w.backup))
		}
	}
	w.backedUp = true
	return nil
}
