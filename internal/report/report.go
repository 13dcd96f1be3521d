// Package report implements run persistence (component I): writing
// minimized differential bytes under a fresh run UUID and emitting the
// report JSON atomically enough that a crashed run leaves a well-formed
// partial report or none at all.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
)

// DifferentialEntry is one persisted differential in the report.
type DifferentialEntry struct {
	Path       string `json:"path"`
	Time       float64 `json:"time"`
	Generation int     `json:"generation"`
}

// CoverageSample is one per-generation coverage observation for a target.
type CoverageSample struct {
	Edges      int     `json:"edges"`
	Time       float64 `json:"time"`
	Generation int     `json:"generation"`
}

// Report is the full per-run record (spec §3, §4.I).
type Report struct {
	UUID          string                        `json:"uuid"`
	Differentials []DifferentialEntry           `json:"differentials"`
	Coverage      map[string][]CoverageSample    `json:"coverage"`
}

// New creates an empty report with a fresh run UUID.
func New() *Report {
	return &Report{
		UUID:     uuid.NewString(),
		Coverage: map[string][]CoverageSample{},
	}
}

// Writer persists differentials and the report JSON under the run roots.
type Writer struct {
	ResultsDir string
	ReportsDir string
}

// NewWriter builds a Writer and ensures resultsDir/<uuid> exists.
func NewWriter(resultsDir, reportsDir, runUUID string) (*Writer, error) {
	runDir := filepath.Join(resultsDir, runUUID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, ferrors.ReportWriteFailed(runDir, err)
	}
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return nil, ferrors.ReportWriteFailed(reportsDir, err)
	}
	return &Writer{ResultsDir: resultsDir, ReportsDir: reportsDir}, nil
}

// WriteDifferential writes the k-th minimized differential for runUUID
// and returns the path it was written to (ResultsDir/<runUUID>/differential_<k>).
func (w *Writer) WriteDifferential(runUUID string, k int, bytes []byte) (string, error) {
	name := "differential_" + strconv.Itoa(k)
	path := filepath.Join(w.ResultsDir, runUUID, name)
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return "", ferrors.ReportWriteFailed(path, err)
	}
	return path, nil
}

// WriteReport marshals r and writes it to reports/<uuid>.json atomically
// via a temp-file-then-rename, matching spec §4.I and §6's flat layout.
func (w *Writer) WriteReport(r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ferrors.ReportWriteFailed(r.UUID, err)
	}

	finalPath := filepath.Join(w.ReportsDir, r.UUID+".json")
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return ferrors.ReportWriteFailed(tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return ferrors.ReportWriteFailed(finalPath, err)
	}
	return nil
}

// Reader loads persisted reports, accepting both the flat
// reports/<uuid>.json layout and the legacy reports/<uuid>/report.json
// layout for analysis compatibility (spec §9's Design Notes).
type Reader struct {
	ReportsDir string
}

func NewReader(reportsDir string) *Reader {
	return &Reader{ReportsDir: reportsDir}
}

// Read loads the report for runUUID, trying the flat path first.
func (r *Reader) Read(runUUID string) (*Report, error) {
	flatPath := filepath.Join(r.ReportsDir, runUUID+".json")
	if data, err := os.ReadFile(flatPath); err == nil {
		return unmarshal(data)
	}

	nestedPath := filepath.Join(r.ReportsDir, runUUID, "report.json")
	data, err := os.ReadFile(nestedPath)
	if err != nil {
		return nil, ferrors.ReportNotFound(runUUID)
	}
	return unmarshal(data)
}

func unmarshal(data []byte) (*Report, error) {
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryReport, "PARSE_FAILED", "failed to parse report json", nil, err)
	}
	return &rep, nil
}
