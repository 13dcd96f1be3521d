// Package analyze implements the post-hoc analyzer (component J):
// running queued fuzzer invocations against different commits/configs,
// then producing bug-count/edge-count plots and fingerprint overlap
// reports across the resulting runs.
package analyze

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
)

// QueueRow is one row of the analyzer's CSV queue file: spec §6's
// `name,commit,timeout_seconds[,config_file]`.
type QueueRow struct {
	Name         string
	Commit       string
	TimeoutSecs  int
	ConfigFile   string
}

// LoadQueue parses the CSV queue file, failing fast on any malformed row
// per spec §7 ("fatal; abort before running any commits").
func LoadQueue(path string) ([]QueueRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryAnalyze, "QUEUE_OPEN_FAILED", "failed to open queue file", map[string]interface{}{"path": path}, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows []QueueRow
	lineNo := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, ferrors.AnalyzeQueueInvalid(lineNo, err)
		}
		if len(record) < 3 {
			return nil, ferrors.AnalyzeQueueInvalid(lineNo, nil)
		}
		timeout, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, ferrors.AnalyzeQueueInvalid(lineNo, err)
		}
		row := QueueRow{Name: record[0], Commit: record[1], TimeoutSecs: timeout}
		if len(record) > 3 {
			row.ConfigFile = record[3]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
