package contracts

import "time"

// ArtifactRef identifies one immutable stage output in the artifact store.
// Downstream stages receive refs, never ambient directories.
type ArtifactRef struct {
	RunID string `json:"run_id"`
	Stage Stage  `json:"stage"`
	Path  string `json:"path"`
}

// ArtifactMeta is the metadata record written next to every artifact payload.
type ArtifactMeta struct {
	RunID     string            `json:"run_id"`
	Stage     Stage             `json:"stage"`
	CreatedAt time.Time         `json:"created_at"`
	Upstream  []ArtifactRef     `json:"upstream,omitempty"`
	Summary   map[string]string `json:"summary,omitempty"`
}
