package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImage     JobKind = "image"
	JobKindVideo     JobKind = "video"
	JobKindAudio     JobKind = "audio"
	JobKindAging     JobKind = "aging"
	JobKindUpscale   JobKind = "upscale"
	JobKindVariation JobKind = "variation"
	JobKindEdit      JobKind = "edit"
)

// JobStatus enumerates job lifecycle states. Transitions only move forward:
// pending -> processing -> completed | failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Keys that must be present in a job's InputJSON once the provider has
// accepted the submission. Polling resumes purely from the persisted record,
// so these handles are a hard contract of the payload, not an implementation
// detail.
const (
	HandleRequestID   = "request_id"
	HandleStatusURL   = "status_url"
	HandleResponseURL = "response_url"
	HandleCancelURL   = "cancel_url"
)

// Job encapsulates one unit of generation work submitted to the provider.
// OutputJSON and ErrorMessage are mutually exclusive and each is written at
// most once; CreditsReserved is fixed at admission and never changes.
type Job struct {
	ID              string
	ExternalID      string
	OwnerID         string
	Kind            JobKind
	Model           string
	Status          JobStatus
	Progress        int
	CreditsReserved int
	InputJSON       json.RawMessage
	OutputJSON      json.RawMessage
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Handles extracts the provider polling handles embedded in InputJSON.
func (j *Job) Handles() (statusURL, responseURL, cancelURL string) {
	if len(j.InputJSON) == 0 {
		return "", "", ""
	}
	var input map[string]any
	if err := json.Unmarshal(j.InputJSON, &input); err != nil {
		return "", "", ""
	}
	statusURL, _ = input[HandleStatusURL].(string)
	responseURL, _ = input[HandleResponseURL].(string)
	cancelURL, _ = input[HandleCancelURL].(string)
	return statusURL, responseURL, cancelURL
}
