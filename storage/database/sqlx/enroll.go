package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/enroll"
)

type enrollmentRow struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	CourseID        string      `db:"course_id"`
	Status          string      `db:"status"`
	PaymentIntentID null.String `db:"payment_intent_id"`
	EnrolledAt      null.Time   `db:"enrolled_at"`
	UpdatedAt       null.Time   `db:"updated_at"`
}

type sessionEnrollmentRow struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	SessionID       string      `db:"session_id"`
	Status          string      `db:"status"`
	PaymentIntentID null.String `db:"payment_intent_id"`
	EnrolledAt      null.Time   `db:"enrolled_at"`
}

type progressRow struct {
	ID                string    `db:"id"`
	EnrollmentID      string    `db:"enrollment_id"`
	CompletedSessions int       `db:"completed_sessions"`
	CompletionPct     int       `db:"completion_pct"`
	UpdatedAt         null.Time `db:"updated_at"`
}

type enrollRepository struct {
	exec core.DBExecutor
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(exec core.DBExecutor) *enrollRepository {
	return &enrollRepository{exec: exec}
}

func (repo enrollRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo enrollRepository) unrow(row enrollmentRow) enroll.Enrollment {
	return enroll.Enrollment{
		ID:              row.ID,
		StudentID:       row.StudentID,
		CourseID:        row.CourseID,
		Status:          row.Status,
		PaymentIntentID: row.PaymentIntentID.String,
		EnrolledAt:      row.EnrolledAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}

func (repo enrollRepository) unrowSess(row sessionEnrollmentRow) enroll.SessionEnrollment {
	return enroll.SessionEnrollment{
		ID:              row.ID,
		StudentID:       row.StudentID,
		SessionID:       row.SessionID,
		Status:          row.Status,
		PaymentIntentID: row.PaymentIntentID.String,
		EnrolledAt:      row.EnrolledAt.Time,
	}
}

func (repo enrollRepository) unrowProgress(row progressRow) enroll.CourseProgress {
	return enroll.CourseProgress{
		ID:                row.ID,
		EnrollmentID:      row.EnrollmentID,
		CompletedSessions: row.CompletedSessions,
		CompletionPct:     row.CompletionPct,
		UpdatedAt:         row.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to enroll.ErrNotFound
func (repo enrollRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return enroll.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps psql unique violations to enroll.ErrAlreadyEnrolled
func (repo enrollRepository) trapUniqueErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return enroll.ErrAlreadyEnrolled
	}
	return errors.Wrap(err, msg)
}

func (repo enrollRepository) CreateEnrollment(ctx context.Context, enr enroll.Enrollment, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	enr.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO enrollment (id, student_id, course_id, status, payment_intent_id, enrolled_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		enr.ID, enr.StudentID, enr.CourseID, enr.Status,
		null.NewString(enr.PaymentIntentID, enr.PaymentIntentID != ""),
		enr.EnrolledAt.UTC(), enr.UpdatedAt.UTC(),
	)
	if err != nil {
		return enroll.Enrollment{}, repo.trapUniqueErr(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo enrollRepository) GetEnrollment(ctx context.Context, filter enroll.GetFilter, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	var row enrollmentRow
	exe := repo.getExec(exec)

	switch {
	case filter.ID != "":
		if err := exe.GetContext(ctx, &row, `SELECT * FROM enrollment WHERE id = $1`, filter.ID); err != nil {
			return enroll.Enrollment{}, repo.trapNoRowsErr(err, "finding enrollment by ID")
		}
	case filter.StudentID != "" && filter.CourseID != "":
		if err := exe.GetContext(ctx, &row,
			`SELECT * FROM enrollment WHERE student_id = $1 AND course_id = $2`,
			filter.StudentID, filter.CourseID); err != nil {
			return enroll.Enrollment{}, repo.trapNoRowsErr(err, "finding enrollment by student and course")
		}
	default:
		return enroll.Enrollment{}, enroll.ErrNotFound
	}

	return repo.unrow(row), nil
}

func (repo enrollRepository) QueryEnrollments(ctx context.Context, filter *enroll.QueryFilter, exec ...core.DBExecutor) ([]enroll.Enrollment, error) {
	query := `SELECT * FROM enrollment WHERE 1=1`
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			query += ` AND student_id = $1`
		}
		if filter.CourseID != "" {
			args = append(args, filter.CourseID)
			query += ` AND course_id = $` + itoa(len(args))
		}
		if filter.Status != "" {
			args = append(args, filter.Status)
			query += ` AND status = $` + itoa(len(args))
		}
	}
	query += ` ORDER BY enrolled_at`

	var rows []enrollmentRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enroll.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, repo.unrow(row))
	}
	return enrs, nil
}

func (repo enrollRepository) UpdateEnrollment(ctx context.Context, enr enroll.Enrollment, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE enrollment SET status = $2, payment_intent_id = $3, updated_at = $4 WHERE id = $1`,
		enr.ID, enr.Status,
		null.NewString(enr.PaymentIntentID, enr.PaymentIntentID != ""),
		enr.UpdatedAt.UTC(),
	)
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return enroll.Enrollment{}, enroll.ErrNotFound
	}
	return enr, nil
}

func (repo enrollRepository) CountCourseEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	var count int
	if err := repo.getExec(exec).GetContext(ctx, &count,
		`SELECT COUNT(*) FROM enrollment WHERE course_id = $1`, courseID); err != nil {
		return 0, errors.Wrap(err, "counting course enrollments")
	}
	return count, nil
}

func (repo enrollRepository) CreateSessionEnrollment(ctx context.Context, se enroll.SessionEnrollment, exec ...core.DBExecutor) (enroll.SessionEnrollment, error) {
	se.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO session_enrollment (id, student_id, session_id, status, payment_intent_id, enrolled_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		se.ID, se.StudentID, se.SessionID, se.Status,
		null.NewString(se.PaymentIntentID, se.PaymentIntentID != ""),
		se.EnrolledAt.UTC(),
	)
	if err != nil {
		return enroll.SessionEnrollment{}, repo.trapUniqueErr(err, "inserting session enrollment")
	}
	return se, nil
}

func (repo enrollRepository) GetSessionEnrollment(ctx context.Context, studentID, sessionID string, exec ...core.DBExecutor) (enroll.SessionEnrollment, error) {
	var row sessionEnrollmentRow
	if err := repo.getExec(exec).GetContext(ctx, &row,
		`SELECT * FROM session_enrollment WHERE student_id = $1 AND session_id = $2`,
		studentID, sessionID); err != nil {
		return enroll.SessionEnrollment{}, repo.trapNoRowsErr(err, "finding session enrollment")
	}
	return repo.unrowSess(row), nil
}

func (repo enrollRepository) QueryStudentSessionEnrollments(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]enroll.SessionEnrollment, error) {
	var rows []sessionEnrollmentRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT * FROM session_enrollment WHERE student_id = $1 ORDER BY enrolled_at`, studentID); err != nil {
		return nil, errors.Wrap(err, "querying session enrollments")
	}
	ses := make([]enroll.SessionEnrollment, 0, len(rows))
	for _, row := range rows {
		ses = append(ses, repo.unrowSess(row))
	}
	return ses, nil
}

func (repo enrollRepository) CreateProgress(ctx context.Context, pr enroll.CourseProgress, exec ...core.DBExecutor) (enroll.CourseProgress, error) {
	pr.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO course_progress (id, enrollment_id, completed_sessions, completion_pct, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		pr.ID, pr.EnrollmentID, pr.CompletedSessions, pr.CompletionPct, pr.UpdatedAt.UTC(),
	)
	if err != nil {
		return enroll.CourseProgress{}, errors.Wrap(err, "inserting course progress")
	}
	return pr, nil
}

func (repo enrollRepository) GetProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (enroll.CourseProgress, error) {
	var row progressRow
	if err := repo.getExec(exec).GetContext(ctx, &row,
		`SELECT * FROM course_progress WHERE enrollment_id = $1`, enrollmentID); err != nil {
		return enroll.CourseProgress{}, repo.trapNoRowsErr(err, "finding course progress")
	}
	return repo.unrowProgress(row), nil
}

func (repo enrollRepository) UpdateProgress(ctx context.Context, pr enroll.CourseProgress, exec ...core.DBExecutor) (enroll.CourseProgress, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE course_progress SET completed_sessions = $2, completion_pct = $3, updated_at = $4 WHERE id = $1`,
		pr.ID, pr.CompletedSessions, pr.CompletionPct, pr.UpdatedAt.UTC(),
	)
	if err != nil {
		return enroll.CourseProgress{}, errors.Wrap(err, "updating course progress")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return enroll.CourseProgress{}, enroll.ErrNotFound
	}
	return pr, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
