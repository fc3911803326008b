package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/provider/fal"
)

// Provider is the asynchronous generation backend.
type Provider interface {
	Submit(ctx context.Context, model string, payload map[string]any) (*fal.Submission, error)
	Poll(ctx context.Context, statusURL, responseURL string) (*fal.PollResult, error)
	Cancel(ctx context.Context, cancelURL string) error
}

// Migrator copies ephemeral provider output into durable storage.
type Migrator interface {
	Migrate(ctx context.Context, ownerID, jobID string, index int, sourceURL string) (string, error)
}

// Ledger authorizes and debits credit balances.
type Ledger interface {
	Authorize(ctx context.Context, principal domain.Principal, cost int) error
	Debit(ctx context.Context, userID string, amount int) (int, error)
}

// Orchestrator owns the job lifecycle. Submission is the only path that
// touches the ledger; polling only ever reads the provider and advances the
// persisted job, so a job can be polled any number of times by any number of
// callers without being billed twice.
type Orchestrator struct {
	jobs     domain.JobRepository
	assets   domain.AssetRepository
	provider Provider
	migrator Migrator
	ledger   Ledger
	logger   zerolog.Logger
}

func NewOrchestrator(
	jobs domain.JobRepository,
	assets domain.AssetRepository,
	provider Provider,
	migrator Migrator,
	ledger Ledger,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		assets:   assets,
		provider: provider,
		migrator: migrator,
		ledger:   ledger,
		logger:   logger,
	}
}

// SubmitResult is returned to the caller after a successful admission.
type SubmitResult struct {
	JobID          string
	ExternalID     string
	CreditsCharged int
}

// StatusResult is one observation of a job. Output and Error are mutually
// exclusive; Output is only set on completed jobs.
type StatusResult struct {
	JobID    string
	Status   domain.JobStatus
	Progress int
	Output   json.RawMessage
	Error    string
}

// outputPayload is what a completed job persists as its output.
type outputPayload struct {
	Assets []outputAsset `json:"assets"`
}

type outputAsset struct {
	AssetID  string `json:"asset_id"`
	URL      string `json:"url"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Submit admits a generation request. Ordering is authorize, provider
// submit, persist, debit: credits are only spent on work the provider
// actually accepted, and any failure before persistence leaves no trace.
func (o *Orchestrator) Submit(ctx context.Context, principal domain.Principal, kind domain.JobKind, model string, params map[string]any, quantity int) (*SubmitResult, error) {
	if model == "" {
		defaultModel, err := DefaultModel(kind)
		if err != nil {
			return nil, err
		}
		model = defaultModel
	}

	cost, err := Cost(kind, model, params, quantity)
	if err != nil {
		return nil, err
	}
	if err := o.ledger.Authorize(ctx, principal, cost); err != nil {
		return nil, err
	}

	submission, err := o.provider.Submit(ctx, model, params)
	if err != nil {
		return nil, err
	}

	charged := cost
	if principal.IsAdmin() {
		charged = 0
	}

	input := make(map[string]any, len(params)+4)
	for k, v := range params {
		input[k] = v
	}
	input[domain.HandleRequestID] = submission.RequestID
	input[domain.HandleStatusURL] = submission.StatusURL
	input[domain.HandleResponseURL] = submission.ResponseURL
	if submission.CancelURL != "" {
		input[domain.HandleCancelURL] = submission.CancelURL
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	job := &domain.Job{
		ID:              uuid.NewString(),
		ExternalID:      submission.RequestID,
		OwnerID:         principal.UserID,
		Kind:            kind,
		Model:           model,
		Status:          domain.JobStatusProcessing,
		Progress:        0,
		CreditsReserved: charged,
		InputJSON:       inputJSON,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	if charged > 0 {
		if _, err := o.ledger.Debit(ctx, principal.UserID, charged); err != nil {
			// The provider accepted the work but we could not record the
			// charge. Fail the job so it never sits in processing unbilled.
			if _, failErr := o.jobs.MarkFailed(ctx, job.ID, "credit debit failed"); failErr != nil {
				o.logger.Error().Err(failErr).Str("job_id", job.ID).Msg("could not fail unbilled job")
			}
			return nil, err
		}
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("external_id", job.ExternalID).
		Str("kind", string(kind)).
		Str("model", model).
		Int("credits", charged).
		Msg("job admitted")

	return &SubmitResult{JobID: job.ID, ExternalID: job.ExternalID, CreditsCharged: charged}, nil
}

// Status reports the current state of a job, advancing it when the provider
// has news. Terminal jobs are answered from the persisted record with no
// provider call, so the read is idempotent and cheap.
func (o *Orchestrator) Status(ctx context.Context, principal domain.Principal, jobID string) (*StatusResult, error) {
	job, err := o.fetchAuthorized(ctx, principal, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return resultFromJob(job), nil
	}

	statusURL, responseURL, _ := job.Handles()
	if statusURL == "" {
		return o.failAndReturn(ctx, job, "job record has no polling handles")
	}

	poll, err := o.provider.Poll(ctx, statusURL, responseURL)
	if err != nil {
		// A failed poll is terminal. Leaving the job silently stuck in
		// processing would look like progress to the caller.
		return o.failAndReturn(ctx, job, fmt.Sprintf("status poll failed: %v", err))
	}

	switch poll.Status {
	case fal.StatusFailed:
		return o.failAndReturn(ctx, job, poll.Error)
	case fal.StatusCompleted:
		return o.resolveCompleted(ctx, job, poll.Result)
	default:
		progress := poll.Progress
		if progress < job.Progress {
			progress = job.Progress
		}
		if progress > job.Progress {
			if err := o.jobs.UpdateProgress(ctx, job.ID, progress); err != nil {
				o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("progress update failed")
			}
		}
		return &StatusResult{JobID: job.ID, Status: domain.JobStatusProcessing, Progress: progress}, nil
	}
}

// resolveCompleted migrates provider output into durable storage and writes
// the terminal state. Migration runs before the conditional completion write;
// its keys are deterministic, so a concurrent resolver doing the same work
// only overwrites identical objects. The completion write decides the race:
// the winner inserts the asset rows, the loser re-reads and returns whatever
// the winner persisted.
func (o *Orchestrator) resolveCompleted(ctx context.Context, job *domain.Job, result json.RawMessage) (*StatusResult, error) {
	spec, err := kindFor(job.Kind)
	if err != nil {
		return o.failAndReturn(ctx, job, fmt.Sprintf("unknown kind %q", job.Kind))
	}
	items := spec.extract(result)
	if len(items) == 0 {
		return o.failAndReturn(ctx, job, "provider returned no output")
	}

	var input map[string]any
	_ = json.Unmarshal(job.InputJSON, &input)

	built := make([]domain.Asset, 0, len(items))
	payload := outputPayload{Assets: make([]outputAsset, 0, len(items))}
	for i, item := range items {
		metadata := make(map[string]any, len(item.Metadata)+2)
		for k, v := range item.Metadata {
			metadata[k] = v
		}
		if sourceAsset, ok := input[domain.MetaSourceAssetID].(string); ok && sourceAsset != "" {
			metadata[domain.MetaSourceAssetID] = sourceAsset
		}

		url, migrateErr := o.migrator.Migrate(ctx, job.OwnerID, job.ID, i, item.URL)
		degraded := false
		if migrateErr != nil {
			// Degrade, don't fail: the ephemeral URL stays valid for a
			// bounded window, which beats throwing the whole job away.
			o.logger.Warn().Err(migrateErr).Str("job_id", job.ID).Int("index", i).Msg("asset migration failed, keeping ephemeral url")
			url = item.URL
			degraded = true
			metadata[domain.MetaDegraded] = true
		}

		prompt, _ := input["prompt"].(string)
		asset := domain.Asset{
			ID:          uuid.NewString(),
			OwnerID:     job.OwnerID,
			Type:        spec.assetType,
			StorageURL:  url,
			SourceJobID: job.ID,
			Prompt:      prompt,
			Model:       job.Model,
			Metadata:    metadata,
		}
		built = append(built, asset)
		payload.Assets = append(payload.Assets, outputAsset{AssetID: asset.ID, URL: url, Degraded: degraded})
	}

	output, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal output: %w", err)
	}

	won, err := o.jobs.MarkCompleted(ctx, job.ID, output)
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	if !won {
		// Another poller resolved the job first. Its assets are the record
		// of truth; ours are discarded unreferenced.
		fresh, err := o.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return resultFromJob(fresh), nil
	}

	for i := range built {
		if err := o.assets.Create(ctx, &built[i]); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.ID).Str("asset_id", built[i].ID).Msg("asset insert failed")
		}
	}

	o.logger.Info().Str("job_id", job.ID).Int("assets", len(built)).Msg("job completed")
	return &StatusResult{JobID: job.ID, Status: domain.JobStatusCompleted, Progress: 100, Output: output}, nil
}

// Cancel asks the provider to stop the work and fails the job locally.
// The provider call is advisory; what Cancel guarantees is that the local
// polling and billing cycle for this job is over.
func (o *Orchestrator) Cancel(ctx context.Context, principal domain.Principal, jobID string) (*StatusResult, error) {
	job, err := o.fetchAuthorized(ctx, principal, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return resultFromJob(job), nil
	}

	if _, _, cancelURL := job.Handles(); cancelURL != "" {
		if err := o.provider.Cancel(ctx, cancelURL); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("provider cancel failed")
		}
	}
	return o.failAndReturn(ctx, job, "canceled by user")
}

// ListJobs returns the caller's jobs.
func (o *Orchestrator) ListJobs(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Job, error) {
	return o.jobs.ListByOwner(ctx, principal.UserID, limit, offset)
}

func (o *Orchestrator) fetchAuthorized(ctx context.Context, principal domain.Principal, jobID string) (*domain.Job, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != principal.UserID && !principal.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	return job, nil
}

// failAndReturn writes the terminal failure and reports the persisted state.
// If a concurrent poller already resolved the job, that resolution wins and
// is what the caller sees.
func (o *Orchestrator) failAndReturn(ctx context.Context, job *domain.Job, message string) (*StatusResult, error) {
	won, err := o.jobs.MarkFailed(ctx, job.ID, message)
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	if !won {
		fresh, err := o.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return resultFromJob(fresh), nil
	}
	o.logger.Info().Str("job_id", job.ID).Str("error", message).Msg("job failed")
	return &StatusResult{JobID: job.ID, Status: domain.JobStatusFailed, Progress: job.Progress, Error: message}, nil
}

func resultFromJob(job *domain.Job) *StatusResult {
	result := &StatusResult{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.ErrorMessage,
	}
	if job.Status == domain.JobStatusCompleted {
		result.Output = job.OutputJSON
		result.Progress = 100
	}
	return result
}
