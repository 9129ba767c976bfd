package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationKind classifies what a plan does against the backend.
type OperationKind string

const (
	OpQuery      OperationKind = "QUERY"
	OpInsert     OperationKind = "INSERT"
	OpUpdate     OperationKind = "UPDATE"
	OpDelete     OperationKind = "DELETE"
	OpUpsert     OperationKind = "UPSERT"
	OpBulkImport OperationKind = "BULK_IMPORT"
	OpBulkExport OperationKind = "BULK_EXPORT"
	OpTreeImport OperationKind = "TREE_IMPORT"
)

// String returns the string representation of the OperationKind.
func (k OperationKind) String() string {
	return string(k)
}

// IsMutation reports whether the operation changes backend state.
func (k OperationKind) IsMutation() bool {
	switch k {
	case OpInsert, OpUpdate, OpDelete, OpUpsert, OpBulkImport, OpTreeImport:
		return true
	default:
		return false
	}
}

// IsValid reports whether the kind is one of the recognized operations.
func (k OperationKind) IsValid() bool {
	switch k {
	case OpQuery, OpInsert, OpUpdate, OpDelete, OpUpsert, OpBulkImport, OpBulkExport, OpTreeImport:
		return true
	default:
		return false
	}
}

// Record is a single backend record as a field-name to value mapping.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the record carries a non-nil value for the field.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// GetString retrieves the value for the field as a string.
func (r Record) GetString(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// EstimatedSize returns the JSON-serialized size of the record in bytes.
// It is the size measure used by the batcher's byte quota.
func (r Record) EstimatedSize() int {
	data, err := json.Marshal(r)
	if err != nil {
		// Unserializable values are estimated field-by-field as their
		// formatted length; the estimate only has to be stable.
		size := 2
		for k, v := range r {
			size += len(k) + len(fmt.Sprintf("%v", v)) + 6
		}
		return size
	}
	return len(data)
}

// FieldSchema describes one field of an ObjectSchema.
type FieldSchema struct {
	Name           string
	Type           string
	Required       bool
	PicklistValues []string
	IsRelationship bool
	RelatedObject  string
	// MaxLength bounds string values; 0 means unbounded.
	MaxLength int
}

// ObjectSchema describes an object on the remote data platform. It is
// supplied by a SchemaProvider and immutable for the lifetime of a plan.
type ObjectSchema struct {
	Name   string
	Fields []FieldSchema
}

// Field looks up a field by name. The second return value reports presence.
func (s *ObjectSchema) Field(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// RequiredFields returns the names of all required fields.
func (s *ObjectSchema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// OperationPlan is a validated, normalized operation intent. It is created by
// the planner and treated as immutable once handed to the batcher.
type OperationPlan struct {
	ID     string
	Kind   OperationKind
	Object string
	// Records is the candidate record set for mutating operations.
	Records []Record
	// Query is the query text for OpQuery / OpBulkExport plans.
	Query string
	// ExternalIDField is the match field for OpUpsert plans.
	ExternalIDField string
	// ChunkSizeHint is a caller preference for batch sizing; the batcher still
	// enforces the configured quotas on top of it.
	ChunkSizeHint int
	// Purpose documents why the operation is being run. Scored by the
	// documentation rubric category.
	Purpose string
	// CleanupNamePattern, when set, lets the tracker build a name-based
	// cleanup predicate for out-of-band deletion.
	CleanupNamePattern string
	CreateTime         time.Time
}

// RecordCount returns the number of candidate records.
func (p *OperationPlan) RecordCount() int {
	return len(p.Records)
}

// Batch is an ordered slice of a plan's records bounded by the per-call
// quotas. A batch owns no external resources and is consumed exactly once by
// the execution engine.
type Batch struct {
	// Index is the zero-based position of the batch within its plan.
	Index int
	// Offset is the index of the first record within the plan's record set.
	Offset int
	// Records is the bounded record slice.
	Records []Record
	// EstimatedBytes is the summed serialized size of Records.
	EstimatedBytes int
}

// RowCount returns the number of records in the batch.
func (b *Batch) RowCount() int {
	return len(b.Records)
}

// RowOutcome is the per-record result of an executed call.
type RowOutcome struct {
	// Index is the record's index within the whole plan, not the batch.
	Index int
	// RecordID is the backend identifier, set on success.
	RecordID string
	Success  bool
	// Created distinguishes an upsert that inserted from one that updated.
	Created      bool
	ErrorCode    string
	ErrorMessage string
}

// BatchResult merges the row outcomes of a single batch.
type BatchResult struct {
	BatchIndex int
	Outcomes   []RowOutcome
	// Async reports whether the batch went through the bulk job path.
	Async bool
	// JobID identifies the backend job for async batches.
	JobID string
}

// SuccessCount returns the number of successful rows.
func (r *BatchResult) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed rows.
func (r *BatchResult) FailureCount() int {
	return len(r.Outcomes) - r.SuccessCount()
}

// JobState represents the lifecycle state of an asynchronous bulk job.
type JobState string

const (
	JobStateQueued     JobState = "QUEUED"
	JobStateInProgress JobState = "IN_PROGRESS"
	JobStateComplete   JobState = "JOB_COMPLETE"
	JobStateFailed     JobState = "JOB_FAILED"
	JobStateAborted    JobState = "ABORTED"
)

// String returns the string representation of the JobState.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal reports whether the state ends the job's local lifecycle.
// JobStateAborted is local-only: the backend may still be running.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateComplete, JobStateFailed, JobStateAborted:
		return true
	default:
		return false
	}
}

// Job is an asynchronous unit of work submitted to the backend and driven to
// completion by the poller. It is owned by the poller for its lifetime.
type Job struct {
	ID             string
	Handle         string
	State          JobState
	SubmittedBatch *Batch
	Results        []RowOutcome
	SubmitTime     time.Time
	LastPolled     time.Time
	PollCount      int
}

// NewJob creates a Job in the QUEUED state for the given backend handle.
func NewJob(handle string, batch *Batch) *Job {
	return &Job{
		ID:             NewID(),
		Handle:         handle,
		State:          JobStateQueued,
		SubmittedBatch: batch,
		SubmitTime:     time.Now(),
	}
}

// TransitionTo moves the job to the next state, rejecting transitions out of
// a terminal state.
func (j *Job) TransitionTo(next JobState) error {
	if j.State.IsTerminal() {
		return fmt.Errorf("job %s is already terminal (%s), cannot transition to %s", j.ID, j.State, next)
	}
	j.State = next
	return nil
}

// RecordTrace is one committed row the orchestrator touched. Traces are
// append-only and the sole input to rollback and cleanup generation.
type RecordTrace struct {
	ID string
	// Sequence is the commit-acknowledgement order within the session.
	// Rollback undoes traces in descending Sequence order.
	Sequence int64
	Object   string
	Kind     OperationKind
	RecordID string
	// RolledBack marks traces already compensated, making rollback idempotent.
	RolledBack bool
	Timestamp  time.Time
}

// RollbackMarker is an opaque point-in-time reference into the trace log.
// The zero value means "the beginning of the session".
type RollbackMarker struct {
	// Sequence is the last trace sequence covered by the snapshot; rollback
	// applies to traces with Sequence greater than this.
	Sequence int64
	// SavepointToken is the backend-native savepoint for the same point in
	// time, when the executor supports savepoints; empty otherwise.
	SavepointToken string
	TakenAt        time.Time
}

// CleanupPattern selects traces or backend records for an out-of-band cleanup
// predicate. Set selectors are ANDed into one predicate; tracked-id selection
// and pattern-based selection stay independent mechanisms the caller combines
// as needed.
type CleanupPattern struct {
	// ByTrackedIDs selects the ids recorded in the trace log.
	ByTrackedIDs bool
	// NamePattern selects records whose Name matches a LIKE-style pattern.
	NamePattern string
	// CreatedAfter / CreatedBefore bound a creation-time window.
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// OperationStatus represents the lifecycle state of an orchestrated run.
type OperationStatus string

const (
	OperationStatusStarting  OperationStatus = "STARTING"
	OperationStatusStarted   OperationStatus = "STARTED"
	OperationStatusCompleted OperationStatus = "COMPLETED"
	OperationStatusFailed    OperationStatus = "FAILED"
	OperationStatusAborted   OperationStatus = "ABORTED"
)

// IsFinished checks if the OperationStatus represents a finished state.
func (s OperationStatus) IsFinished() bool {
	switch s {
	case OperationStatusCompleted, OperationStatusFailed, OperationStatusAborted:
		return true
	default:
		return false
	}
}

// FailureList holds a list of error messages accumulated during a run.
type FailureList []string

// OperationRun is the bookkeeping record for one orchestrated operation,
// analogous to a batch framework's job execution.
type OperationRun struct {
	ID         string
	PlanID     string
	Kind       OperationKind
	Object     string
	Status     OperationStatus
	StartTime  time.Time
	EndTime    *time.Time
	Failures   FailureList
	BatchCount int
	Counts     Counts
}

// NewOperationRun creates an OperationRun in the STARTING state for the plan.
func NewOperationRun(plan *OperationPlan) *OperationRun {
	return &OperationRun{
		ID:       NewID(),
		PlanID:   plan.ID,
		Kind:     plan.Kind,
		Object:   plan.Object,
		Status:   OperationStatusStarting,
		Failures: FailureList{},
	}
}

// MarkAsStarted moves the run to STARTED and stamps the start time.
func (r *OperationRun) MarkAsStarted() {
	r.Status = OperationStatusStarted
	r.StartTime = time.Now()
}

// MarkAsCompleted moves the run to COMPLETED and stamps the end time.
func (r *OperationRun) MarkAsCompleted() {
	now := time.Now()
	r.Status = OperationStatusCompleted
	r.EndTime = &now
}

// MarkAsFailed moves the run to FAILED, stamps the end time and records the
// failure message.
func (r *OperationRun) MarkAsFailed(err error) {
	now := time.Now()
	r.Status = OperationStatusFailed
	r.EndTime = &now
	if err != nil {
		r.Failures = append(r.Failures, err.Error())
	}
}

// MarkAsAborted moves the run to ABORTED, stamps the end time and records the
// reason.
func (r *OperationRun) MarkAsAborted(reason string) {
	now := time.Now()
	r.Status = OperationStatusAborted
	r.EndTime = &now
	if reason != "" {
		r.Failures = append(r.Failures, reason)
	}
}

// AddFailure appends an error message to the run's failure list.
func (r *OperationRun) AddFailure(err error) {
	if err != nil {
		r.Failures = append(r.Failures, err.Error())
	}
}

// Counts tallies the rows an operation touched, by effect.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Total returns the sum of all tallies. For a completed operation this equals
// the plan's input record count.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Deleted + c.Failed
}

// Add merges another tally into this one.
func (c *Counts) Add(other Counts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Deleted += other.Deleted
	c.Failed += other.Failed
}

// CountOutcomes tallies row outcomes according to the operation kind:
// successful inserts count as created, updates as updated, deletes as
// deleted; upsert rows split on the per-row Created flag.
func CountOutcomes(kind OperationKind, outcomes []RowOutcome) Counts {
	var c Counts
	for _, o := range outcomes {
		if !o.Success {
			c.Failed++
			continue
		}
		switch kind {
		case OpInsert, OpBulkImport, OpTreeImport:
			c.Created++
		case OpUpdate:
			c.Updated++
		case OpDelete:
			c.Deleted++
		case OpUpsert:
			if o.Created {
				c.Created++
			} else {
				c.Updated++
			}
		}
	}
	return c
}

// NewID generates a unique identifier for plans, runs, jobs and traces.
func NewID() string {
	return uuid.New().String()
}
