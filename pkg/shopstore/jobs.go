package shopstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job is a registry row. The time-tracking engine reads identity and
// eligibility fields only; job business fields are owned by the intake and
// board flows.
type Job struct {
	ID          int64
	Company     string
	Color       string
	Description string
	Priority    string
	DueBy       *time.Time
	Status      string
	Department  string
	OnScreen    bool
	Archived    bool
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// NewJobParams carries the caller-supplied fields for CreateJob.
type NewJobParams struct {
	Company     string
	Color       string
	Description string
	Priority    string
	DueBy       *time.Time
	Status      string
	OnScreen    bool
}

const jobColumns = `id, company, color, description, priority, due_by, status,
       department, on_screen, archived, completed_at, created_at`

// CreateJob inserts a job and returns it with its assigned id.
func CreateJob(ctx context.Context, q DBTX, params NewJobParams, now time.Time) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	status := params.Status
	if status == "" {
		status = "Intake"
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO jobs (company, color, description, priority, due_by, status, on_screen, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.Company, params.Color, params.Description, params.Priority,
		fmtOptionalTime(params.DueBy), status, boolToInt(params.OnScreen), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("job insert id: %w", err)
	}

	return &Job{
		ID:          id,
		Company:     params.Company,
		Color:       params.Color,
		Description: params.Description,
		Priority:    params.Priority,
		DueBy:       params.DueBy,
		Status:      status,
		OnScreen:    params.OnScreen,
		CreatedAt:   now.UTC(),
	}, nil
}

// GetJob retrieves a job by id. Returns ErrNotFound if absent.
func GetJob(ctx context.Context, q DBTX, jobID int64) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)

	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListSprayableJobs lists jobs eligible for spraying: on the active screen,
// not archived, not completed. This is the sprayer's hit list.
func ListSprayableJobs(ctx context.Context, q DBTX) ([]Job, error) {
	return listJobs(ctx, q,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE archived = 0 AND completed_at IS NULL AND on_screen = 1
		 ORDER BY
		   CASE priority
		     WHEN 'Emergency' THEN 1
		     WHEN 'Rush' THEN 2
		     WHEN 'Semi Rush' THEN 3
		     ELSE 4
		   END,
		   due_by IS NULL, due_by, id DESC`)
}

// ListAttachCandidates lists eligible jobs not yet attached to the batch.
func ListAttachCandidates(ctx context.Context, q DBTX, batchID int64) ([]Job, error) {
	return listJobs(ctx, q,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE archived = 0 AND completed_at IS NULL AND on_screen = 1
		   AND NOT EXISTS (
		     SELECT 1 FROM spray_batch_jobs sbj
		     WHERE sbj.batch_id = ? AND sbj.job_id = jobs.id
		   )
		 ORDER BY id DESC`, batchID)
}

// MarkJobsSprayed sets the status of the given jobs to Sprayed.
func MarkJobsSprayed(ctx context.Context, q DBTX, jobIDs []int64) error {
	return updateJobs(ctx, q,
		`UPDATE jobs SET status = 'Sprayed' WHERE id IN (%s)`, jobIDs)
}

// MarkJobsFinished stamps completion on the given jobs and takes them off
// the active board.
func MarkJobsFinished(ctx context.Context, q DBTX, jobIDs []int64, completedAt time.Time) error {
	if len(jobIDs) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	args := make([]any, 0, len(jobIDs)+1)
	args = append(args, fmtTime(completedAt))
	for _, id := range jobIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE jobs SET completed_at = ?, on_screen = 0 WHERE id IN (%s)`,
		placeholders(len(jobIDs)))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark jobs finished: %w", err)
	}
	return nil
}

func updateJobs(ctx context.Context, q DBTX, queryFmt string, jobIDs []int64) error {
	if len(jobIDs) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	args := make([]any, 0, len(jobIDs))
	for _, id := range jobIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(queryFmt, placeholders(len(jobIDs)))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update jobs: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func listJobs(ctx context.Context, q DBTX, query string, args ...any) ([]Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func scanJob(scan func(dest ...any) error) (*Job, error) {
	var j Job
	var color, description, priority, department sql.NullString
	var dueByRaw, completedAtRaw, createdAtRaw any
	var onScreen, archived int

	err := scan(
		&j.ID, &j.Company, &color, &description, &priority, &dueByRaw,
		&j.Status, &department, &onScreen, &archived, &completedAtRaw, &createdAtRaw)
	if err != nil {
		return nil, err
	}

	j.Color = color.String
	j.Description = description.String
	j.Priority = priority.String
	j.Department = department.String
	j.OnScreen = onScreen != 0
	j.Archived = archived != 0

	dueBy, err := parseOptionalDBTime(dueByRaw)
	if err != nil {
		return nil, fmt.Errorf("parse due_by: %w", err)
	}
	j.DueBy = dueBy

	completedAt, err := parseOptionalDBTime(completedAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	j.CompletedAt = completedAt

	createdAt, err := parseDBTime(createdAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	j.CreatedAt = createdAt

	return &j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
