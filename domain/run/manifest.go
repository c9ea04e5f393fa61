package run

import (
	"strconv"
	"time"

	"omicpath/domain/core"
)

// CodeVersion is stamped into every manifest
const CodeVersion = "omicpath/1.0.0"

// Parameters are the run options that change a report
type Parameters struct {
	Mode             string  `json:"mode"`
	UniverseOmic     string  `json:"universe_omic,omitempty"`
	MinModuleSize    int     `json:"min_module_size"`
	Iterations       int     `json:"iterations"`
	DropPerIteration int     `json:"drop_per_iteration"`
	Alpha            float64 `json:"alpha"`
	Seed             int64   `json:"seed"`
}

// Manifest records what a report was computed from. Two runs with the same
// fingerprint produce identical reports.
type Manifest struct {
	RunID          core.RunID `json:"run_id"`
	DatasetHash    core.Hash  `json:"dataset_hash"`
	CollectionHash core.Hash  `json:"collection_hash"`
	Samples        int        `json:"samples"`
	Omics          []string   `json:"omics"`
	Parameters     Parameters `json:"parameters"`
	CodeVersion    string     `json:"code_version"`
	Fingerprint    core.Hash  `json:"fingerprint"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewManifest creates a manifest and computes its fingerprint
func NewManifest(runID core.RunID, datasetHash, collectionHash core.Hash, samples int, omics []string, params Parameters) *Manifest {
	m := &Manifest{
		RunID:          runID,
		DatasetHash:    datasetHash,
		CollectionHash: collectionHash,
		Samples:        samples,
		Omics:          append([]string(nil), omics...),
		Parameters:     params,
		CodeVersion:    CodeVersion,
		CreatedAt:      time.Now().UTC(),
	}
	m.Fingerprint = m.computeFingerprint()
	return m
}

// computeFingerprint hashes everything except the run id and timestamp
func (m *Manifest) computeFingerprint() core.Hash {
	p := m.Parameters
	return core.ComputeAnalysisHash(m.DatasetHash, m.CollectionHash,
		p.Mode,
		p.UniverseOmic,
		strconv.Itoa(p.MinModuleSize),
		strconv.Itoa(p.Iterations),
		strconv.Itoa(p.DropPerIteration),
		strconv.FormatFloat(p.Alpha, 'g', -1, 64),
		strconv.FormatInt(p.Seed, 10),
		m.CodeVersion,
	)
}

// Verify reports whether the stored fingerprint matches the manifest fields
func (m *Manifest) Verify() bool {
	return m.Fingerprint == m.computeFingerprint()
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if m.RunID == "" {
		return core.NewInvalidInputError("manifest", "run_id cannot be empty")
	}
	if m.DatasetHash.IsEmpty() {
		return core.NewInvalidInputError("manifest", "dataset_hash cannot be empty")
	}
	if m.CollectionHash.IsEmpty() {
		return core.NewInvalidInputError("manifest", "collection_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewInvalidInputError("manifest", "code_version cannot be empty")
	}
	return nil
}
