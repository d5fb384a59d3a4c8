package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

const (
	payloadFile = "payload.json"
	metaFile    = "metadata.json"
)

// Store is a filesystem artifact store. Each pipeline stage writes exactly
// one artifact per run under <root>/<run_id>/<stage>/; a directory that
// already exists is a hard error, which is what keeps artifacts immutable.
type Store struct {
	root string
}

// NewStore creates the store root if needed and returns the store.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Write persists a stage payload and its metadata, returning the ref the
// next stage consumes. Writing the same run/stage twice fails.
func (s *Store) Write(runID string, stage contracts.Stage, payload any, upstream []contracts.ArtifactRef, summary map[string]string) (contracts.ArtifactRef, error) {
	if runID == "" {
		return contracts.ArtifactRef{}, fmt.Errorf("artifact write: empty run id")
	}

	dir := filepath.Join(s.root, runID, stage.String())
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return contracts.ArtifactRef{}, fmt.Errorf("create run directory: %w", err)
	}

	// Mkdir (not MkdirAll) so a second write for the same stage fails.
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return contracts.ArtifactRef{}, fmt.Errorf("artifact for %s/%s already exists", runID, stage.ShortName())
		}
		return contracts.ArtifactRef{}, fmt.Errorf("create artifact directory: %w", err)
	}

	meta := contracts.ArtifactMeta{
		RunID:     runID,
		Stage:     stage,
		CreatedAt: time.Now().UTC(),
		Upstream:  upstream,
		Summary:   summary,
	}

	if err := writeJSON(filepath.Join(dir, payloadFile), payload); err != nil {
		return contracts.ArtifactRef{}, fmt.Errorf("write payload: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, metaFile), meta); err != nil {
		return contracts.ArtifactRef{}, fmt.Errorf("write metadata: %w", err)
	}

	return contracts.ArtifactRef{RunID: runID, Stage: stage, Path: dir}, nil
}

// Read loads an artifact payload into dest.
func (s *Store) Read(ref contracts.ArtifactRef, dest any) error {
	data, err := os.ReadFile(filepath.Join(ref.Path, payloadFile))
	if err != nil {
		return fmt.Errorf("read payload %s/%s: %w", ref.RunID, ref.Stage.ShortName(), err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode payload %s/%s: %w", ref.RunID, ref.Stage.ShortName(), err)
	}
	return nil
}

// ReadMeta loads an artifact's metadata record.
func (s *Store) ReadMeta(ref contracts.ArtifactRef) (contracts.ArtifactMeta, error) {
	data, err := os.ReadFile(filepath.Join(ref.Path, metaFile))
	if err != nil {
		return contracts.ArtifactMeta{}, fmt.Errorf("read metadata %s/%s: %w", ref.RunID, ref.Stage.ShortName(), err)
	}

	var meta contracts.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return contracts.ArtifactMeta{}, fmt.Errorf("decode metadata %s/%s: %w", ref.RunID, ref.Stage.ShortName(), err)
	}
	return meta, nil
}

// writeJSON writes via a temp file and rename so a crash mid-write never
// leaves a readable half-artifact behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
