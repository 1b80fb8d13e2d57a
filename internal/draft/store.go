package draft

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rede-alerta/alertsync/internal/alert"
)

// fileName is the single record the store manages
const fileName = "last_report.json"

// record is the persisted shape, matching the key the mobile app has always
// written: the last successfully submitted report, kept for recovery only.
// It is never resubmitted automatically.
type record struct {
	Descricao   string  `json:"descricao"`
	Localizacao string  `json:"localizacao"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Store is a best-effort durable store for the last submitted draft.
// Save failures are logged and swallowed; a submission must never fail
// because the recovery record could not be written.
type Store struct {
	path   string
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewStore creates a store rooted at stateDir
func NewStore(stateDir string, logger *logrus.Logger) *Store {
	return &Store{
		path:   filepath.Join(stateDir, fileName),
		logger: logger,
	}
}

// Save overwrites the stored record with the given draft. Called only after
// a successful submission: failed submissions leave the store untouched.
func (s *Store) Save(d alert.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{
		"component": "draft",
		"path":      s.path,
	})

	data, err := json.Marshal(record{
		Descricao:   d.Description,
		Localizacao: d.Location,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to marshal draft record")
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.WithError(err).Warn("Failed to create state directory")
		return
	}

	// Write-then-rename so a crash mid-write cannot corrupt the record
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.WithError(err).Warn("Failed to write draft record")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.WithError(err).Warn("Failed to replace draft record")
	}
}

// Load returns the last saved draft. A missing or unreadable record is
// absence, not an error: corruption loses the recovery artifact, nothing
// else.
func (s *Store) Load() (alert.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return alert.Draft{}, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.WithFields(logrus.Fields{
			"component": "draft",
			"path":      s.path,
		}).WithError(err).Warn("Draft record is corrupt, treating as absent")
		return alert.Draft{}, false
	}

	return alert.Draft{
		Description: rec.Descricao,
		Location:    rec.Localizacao,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		HasFix:      rec.Latitude != 0 || rec.Longitude != 0,
	}, true
}
