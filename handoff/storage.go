package handoff

import (
	"encoding/json"
	"os"
	"path/filepath"

	"ctxguard/session"
)

const metricsFilename = "handoff.metrics.log"

// Path returns where a session's latest handoff is stored.
func Path(stateDir, sessionID string) string {
	return filepath.Join(stateDir, "handoff_"+session.SanitizeID(sessionID)+".json")
}

// MetricsPath returns the location of the handoff metrics log.
func MetricsPath(stateDir string) string {
	return filepath.Join(stateDir, metricsFilename)
}

// ReadLatest reads the latest handoff of a session if it exists.
// Returns (nil, nil) when no artifact is present.
func ReadLatest(stateDir, sessionID string) (*Artifact, error) {
	data, err := os.ReadFile(Path(stateDir, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, err
	}
	normalizeArtifact(&artifact)

	return &artifact, nil
}

// WriteLatest writes an artifact atomically and logs it to the metrics log.
func WriteLatest(stateDir string, artifact *Artifact) error {
	normalizeArtifact(artifact)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	if err := writeJSONAtomic(Path(stateDir, artifact.SessionID), artifact); err != nil {
		return err
	}
	return appendMetrics(stateDir, artifact)
}

func writeJSONAtomic(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func appendMetrics(stateDir string, artifact *Artifact) error {
	entry := struct {
		GeneratedAt     string `json:"generated_at"`
		SessionID       string `json:"session_id"`
		Tier            string `json:"tier"`
		EstimatedTokens int64  `json:"estimated_tokens"`
		Partitions      int    `json:"partitions"`
		NewFiles        int    `json:"new_files"`
		StateHash       string `json:"state_hash"`
		Unchanged       bool   `json:"unchanged"`
	}{
		GeneratedAt:     artifact.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		SessionID:       artifact.SessionID,
		Tier:            artifact.Tier.String(),
		EstimatedTokens: artifact.EstimatedTokens,
		Partitions:      len(artifact.Partitions),
		NewFiles:        len(artifact.NewFiles),
		StateHash:       artifact.StateHash,
		Unchanged:       artifact.Unchanged(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(MetricsPath(stateDir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func normalizeArtifact(artifact *Artifact) {
	if artifact.SchemaVersion == 0 {
		artifact.SchemaVersion = SchemaVersion
	}
	if artifact.Partitions == nil {
		artifact.Partitions = []Partition{}
	}
	for i := range artifact.Partitions {
		if artifact.Partitions[i].Files == nil {
			artifact.Partitions[i].Files = []FileStub{}
		}
	}
	if artifact.NewFiles == nil {
		artifact.NewFiles = []FileStub{}
	}
	if artifact.Seen == nil {
		artifact.Seen = []string{}
	}
	if artifact.NextSteps == nil {
		artifact.NextSteps = []string{}
	}
}

// Remove deletes the stored handoff of a session. A missing file is not an
// error.
func Remove(stateDir, sessionID string) error {
	if err := os.Remove(Path(stateDir, sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
