package model

import "time"

// MaxSampleRecordIDs bounds the sample id list carried by a report.
const MaxSampleRecordIDs = 10

// OperationReport is the sole persisted artifact of an orchestrated
// operation. Counts are exact; SampleRecordIDs is a bounded sample.
type OperationReport struct {
	RunID            string          `json:"runId"`
	OperationKind    OperationKind   `json:"operationKind"`
	ObjectName       string          `json:"objectName"`
	Status           OperationStatus `json:"status"`
	Counts           Counts          `json:"counts"`
	SampleRecordIDs  []string        `json:"sampleRecordIds"`
	ScoreReport      *ScoreReport    `json:"scoreReport,omitempty"`
	CleanupPredicate string          `json:"cleanupPredicate,omitempty"`
	RollbackMarker   *RollbackMarker `json:"rollbackMarker,omitempty"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          *time.Time      `json:"endTime,omitempty"`
	Failures         FailureList     `json:"failures,omitempty"`
}

// SampleIDs extracts at most MaxSampleRecordIDs successful record ids from
// the given outcomes, in plan order.
func SampleIDs(outcomes []RowOutcome) []string {
	var out []string
	for _, o := range outcomes {
		if !o.Success || o.RecordID == "" {
			continue
		}
		out = append(out, o.RecordID)
		if len(out) == MaxSampleRecordIDs {
			break
		}
	}
	return out
}
