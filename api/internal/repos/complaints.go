package repos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/workflow"
)

type ComplaintsRepo struct {
	pool *pgxpool.Pool
}

func NewComplaintsRepo(pool *pgxpool.Pool) *ComplaintsRepo {
	return &ComplaintsRepo{pool: pool}
}

const complaintColumns = `
	complaint_id, title, description, location_text, image_url,
	status, category, department, assigned_to, reporter_id,
	ml_verified, ml_confidence, ml_analysis, ml_severity, ml_pending,
	ml_status, ml_verified_at, created_at, updated_at
`

func scanComplaint(row interface{ Scan(dest ...any) error }) (models.Complaint, error) {
	var c models.Complaint
	var mlStatus *string
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.LocationText, &c.ImageURL,
		&c.Status, &c.Category, &c.Department, &c.AssignedTo, &c.ReporterID,
		&c.MLVerification.Verified, &c.MLVerification.Confidence, &c.MLVerification.Analysis,
		&c.MLVerification.Severity, &c.MLVerification.Pending,
		&mlStatus, &c.MLVerification.VerifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if mlStatus != nil {
		c.MLVerification.Status = *mlStatus
	}
	return c, err
}

func (r *ComplaintsRepo) Create(ctx context.Context, c models.Complaint) (models.Complaint, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = workflow.ComplaintStatusPending
	}
	if c.Department == "" {
		c.Department = "General"
	}
	if c.MLVerification.Severity == "" {
		c.MLVerification.Severity = "low"
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO complaints (
			complaint_id, title, description, location_text, image_url,
			status, category, department, assigned_to, reporter_id,
			ml_verified, ml_confidence, ml_analysis, ml_severity, ml_pending,
			ml_status, ml_verified_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $18
		)
		RETURNING `+complaintColumns+`
	`, c.ID, c.Title, c.Description, c.LocationText, c.ImageURL,
		c.Status, c.Category, c.Department, c.AssignedTo, c.ReporterID,
		c.MLVerification.Verified, c.MLVerification.Confidence, c.MLVerification.Analysis,
		c.MLVerification.Severity, c.MLVerification.Pending,
		nullIfEmpty(c.MLVerification.Status), c.MLVerification.VerifiedAt, now)
	return scanComplaint(row)
}

func (r *ComplaintsRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Complaint, error) {
	return getComplaint(ctx, r.pool, id)
}

func getComplaint(ctx context.Context, db DBTX, id uuid.UUID) (models.Complaint, error) {
	row := db.QueryRow(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE complaint_id = $1
	`, id)
	return scanComplaint(row)
}

// List returns complaints ordered by verification confidence, then by
// verified flag, then by recency.
func (r *ComplaintsRepo) List(ctx context.Context, status string, category string, limit int, offset int) ([]models.Complaint, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
	`
	args := make([]any, 0, 4)
	conds := make([]string, 0, 2)
	if status != "" {
		args = append(args, status)
		conds = append(conds, "status = $1")
	}
	if category != "" {
		args = append(args, category)
		conds = append(conds, "category = $"+itoa(len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY ml_confidence DESC, ml_verified DESC, created_at DESC LIMIT $" + itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := make([]models.Complaint, 0, limit)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

func (r *ComplaintsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (models.Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE complaints
		SET status = $2, updated_at = $3
		WHERE complaint_id = $1
		RETURNING `+complaintColumns+`
	`, id, status, time.Now().UTC())
	return scanComplaint(row)
}

func (r *ComplaintsRepo) Assign(ctx context.Context, id uuid.UUID, department string, assignedTo string) (models.Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE complaints
		SET department = $2,
			assigned_to = $3,
			status = $4,
			updated_at = $5
		WHERE complaint_id = $1
		RETURNING `+complaintColumns+`
	`, id, department, nullIfEmpty(assignedTo), workflow.ComplaintStatusAssigned, time.Now().UTC())
	return scanComplaint(row)
}

// MarkVerificationPending puts the sub-record at the start of the
// verification state machine without touching prior result fields.
func (r *ComplaintsRepo) MarkVerificationPending(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE complaints
		SET ml_pending = TRUE,
			ml_status = $2,
			updated_at = $3
		WHERE complaint_id = $1
	`, id, workflow.MLStatusPending, time.Now().UTC())
	return err
}

func (r *ComplaintsRepo) MarkVerificationProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE complaints
		SET ml_pending = TRUE,
			ml_status = $2,
			updated_at = $3
		WHERE complaint_id = $1
	`, id, workflow.MLStatusProcessing, time.Now().UTC())
	return err
}

// WriteVerificationResult stores a terminal verification outcome.
// promoteStatus, when non-empty, also moves the complaint's own status
// (verified potholes get bumped by severity).
func (r *ComplaintsRepo) WriteVerificationResult(ctx context.Context, id uuid.UUID, result models.MLVerification, promoteStatus string) error {
	now := time.Now().UTC()
	verifiedAt := result.VerifiedAt
	if verifiedAt == nil {
		verifiedAt = &now
	}
	if promoteStatus != "" {
		_, err := r.pool.Exec(ctx, `
			UPDATE complaints
			SET ml_verified = $2,
				ml_confidence = $3,
				ml_analysis = $4,
				ml_severity = $5,
				ml_pending = FALSE,
				ml_status = $6,
				ml_verified_at = $7,
				status = $8,
				updated_at = $9
			WHERE complaint_id = $1
		`, id, result.Verified, result.Confidence, result.Analysis, result.Severity,
			result.Status, verifiedAt, promoteStatus, now)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE complaints
		SET ml_verified = $2,
			ml_confidence = $3,
			ml_analysis = $4,
			ml_severity = $5,
			ml_pending = FALSE,
			ml_status = $6,
			ml_verified_at = $7,
			updated_at = $8
		WHERE complaint_id = $1
	`, id, result.Verified, result.Confidence, result.Analysis, result.Severity,
		result.Status, verifiedAt, now)
	return err
}

// UpdateVerification overwrites the whole sub-record. Used by the
// manual admin endpoint; last write wins.
func (r *ComplaintsRepo) UpdateVerification(ctx context.Context, id uuid.UUID, v models.MLVerification) (models.Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE complaints
		SET ml_verified = $2,
			ml_confidence = $3,
			ml_analysis = $4,
			ml_severity = $5,
			ml_pending = $6,
			ml_status = $7,
			ml_verified_at = $8,
			updated_at = $9
		WHERE complaint_id = $1
		RETURNING `+complaintColumns+`
	`, id, v.Verified, v.Confidence, v.Analysis, v.Severity, v.Pending,
		nullIfEmpty(v.Status), v.VerifiedAt, time.Now().UTC())
	return scanComplaint(row)
}

// ResetVerification re-enters the state machine at its initial state.
func (r *ComplaintsRepo) ResetVerification(ctx context.Context, id uuid.UUID) (models.Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE complaints
		SET ml_verified = FALSE,
			ml_confidence = 0,
			ml_analysis = NULL,
			ml_severity = 'low',
			ml_pending = TRUE,
			ml_status = $2,
			ml_verified_at = NULL,
			updated_at = $3
		WHERE complaint_id = $1
		RETURNING `+complaintColumns+`
	`, id, workflow.MLStatusPending, time.Now().UTC())
	return scanComplaint(row)
}

// ListUnprocessed selects complaints that never entered the
// verification pipeline. Terminal states (including failed) are not
// rediscovered here.
func (r *ComplaintsRepo) ListUnprocessed(ctx context.Context, limit int) ([]models.Complaint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE ml_status IS NULL OR ml_status = ''
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := make([]models.Complaint, 0, limit)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

func (r *ComplaintsRepo) RecentActivity(ctx context.Context, limit int) ([]models.Complaint, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := make([]models.Complaint, 0, limit)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
