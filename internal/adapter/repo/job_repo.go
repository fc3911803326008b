package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/infra"
	"github.com/Hakan2211/cinevido-sub002/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Terminal
// transitions are guarded by the current status in SQL, so the first writer
// wins and every later writer is told it lost.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.OwnerID,
		job.Kind,
		job.Model,
		job.Status,
		job.Progress,
		job.CreditsReserved,
		job.ExternalID,
		nullableJSON(job.InputJSON),
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID)
	return scanJob(row)
}

// ListByOwner returns the owner's jobs, newest first.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByUser, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// UpdateProgress advances progress; the guard drops regressions and writes
// against terminal jobs.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateJobProgress, jobID, progress)
	return err
}

// MarkCompleted records the terminal output if the job is still processing.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID string, output json.RawMessage) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob, jobID, nullableJSON(output))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed records the terminal error if the job is still processing.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID string, errMsg string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailJob, jobID, errMsg)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		input  []byte
		output []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Kind,
		&job.Model,
		&job.Status,
		&job.Progress,
		&job.CreditsReserved,
		&job.ExternalID,
		&input,
		&output,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.InputJSON = json.RawMessage(input)
	job.OutputJSON = json.RawMessage(output)
	return &job, nil
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
