package narration

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown, expired or malformed artifact names.
var ErrNotFound = errors.New("audio artifact not found")

// MimeType is the content type of every artifact.
const MimeType = "audio/mpeg"

const (
	artifactPrefix = "speech-"
	artifactExt    = ".mp3"
)

var artifactName = regexp.MustCompile(`^speech-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.mp3$`)

// Artifact is one synthesized audio file.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// URL returns the download path served for the artifact.
func (a Artifact) URL() string {
	return "/file/" + a.Name
}

// Store keeps synthesized audio files in one directory.
//
// Each Save writes a new uniquely named file, so a handle returned earlier
// keeps pointing at the same bytes until retention removes it. At most
// maxArtifacts files are kept, and files older than maxAge are removed by
// Prune.
type Store struct {
	dir          string
	maxArtifacts int
	maxAge       time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu        sync.Mutex
	artifacts []Artifact // oldest first

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewStore opens dir, creating it if needed, and indexes artifacts left
// by a previous run.
func NewStore(dir string, maxArtifacts int, maxAge time.Duration, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "floorplan-advisor-audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		dir:          dir,
		maxArtifacts: maxArtifacts,
		maxAge:       maxAge,
		logger:       logger,
		now:          time.Now,
		stop:         make(chan struct{}),
	}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read audio directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !artifactName.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s.artifacts = append(s.artifacts, Artifact{
			Name:      e.Name(),
			Path:      filepath.Join(s.dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(s.artifacts, func(i, j int) bool {
		return s.artifacts[i].CreatedAt.Before(s.artifacts[j].CreatedAt)
	})
	return nil
}

// Save writes r to a new artifact. The file only becomes visible under
// its final name once fully written.
func (s *Store) Save(r io.Reader) (Artifact, error) {
	tmp, err := os.CreateTemp(s.dir, ".speech-*.tmp")
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to write audio: %w", err)
	}
	if size == 0 {
		return Artifact{}, fmt.Errorf("synthesized audio is empty")
	}

	name := artifactPrefix + uuid.NewString() + artifactExt
	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Artifact{}, fmt.Errorf("failed to store audio: %w", err)
	}

	a := Artifact{Name: name, Path: path, Size: size, CreatedAt: s.now()}

	s.mu.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mu.Unlock()

	s.Prune()
	return a, nil
}

// Lookup resolves a name to a stored artifact.
func (s *Store) Lookup(name string) (Artifact, error) {
	if !artifactName.MatchString(name) || strings.ContainsAny(name, `/\`) {
		return Artifact{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.Name == name {
			if _, err := os.Stat(a.Path); err != nil {
				return Artifact{}, ErrNotFound
			}
			return a, nil
		}
	}
	return Artifact{}, ErrNotFound
}

// Len returns the number of indexed artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Prune removes artifacts beyond the retention count or older than the
// maximum age and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	var expired []Artifact
	cutoff := s.now().Add(-s.maxAge)

	keep := s.artifacts[:0]
	for i, a := range s.artifacts {
		overCount := s.maxArtifacts > 0 && len(s.artifacts)-i > s.maxArtifacts
		tooOld := s.maxAge > 0 && a.CreatedAt.Before(cutoff)
		if overCount || tooOld {
			expired = append(expired, a)
			continue
		}
		keep = append(keep, a)
	}
	s.artifacts = keep
	s.mu.Unlock()

	for _, a := range expired {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove audio artifact", zap.String("name", a.Name), zap.Error(err))
		}
	}
	if len(expired) > 0 {
		s.logger.Debug("pruned audio artifacts", zap.Int("removed", len(expired)))
	}
	return len(expired)
}

// StartJanitor prunes the store every interval until Close is called.
func (s *Store) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Prune()
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the janitor. Stored files are left in place.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}
