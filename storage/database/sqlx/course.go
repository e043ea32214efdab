package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/course"
)

type courseRow struct {
	ID          string      `db:"id"`
	TeacherID   string      `db:"teacher_id"`
	Title       string      `db:"title"`
	Slug        string      `db:"slug"`
	Description null.String `db:"description"`
	Subject     null.String `db:"subject"`
	Level       null.String `db:"level"`
	PriceCents  int64       `db:"price_cents"`
	MaxStudents int         `db:"max_students"`
	Status      string      `db:"status"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type sessionRow struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	StartTime   null.Time   `db:"start_time"`
	EndTime     null.Time   `db:"end_time"`
	PriceCents  int64       `db:"price_cents"`
	IsVirtual   bool        `db:"is_virtual"`
	MeetingLink null.String `db:"meeting_link"`
	Location    null.String `db:"location"`
	CreatedAt   null.Time   `db:"created_at"`
}

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo courseRepository) row(crs course.Course) courseRow {
	return courseRow{
		ID:          crs.ID,
		TeacherID:   crs.TeacherID,
		Title:       crs.Title,
		Slug:        crs.Slug,
		Description: null.NewString(crs.Description, crs.Description != ""),
		Subject:     null.NewString(crs.Subject, crs.Subject != ""),
		Level:       null.NewString(crs.Level, crs.Level != ""),
		PriceCents:  crs.PriceCents,
		MaxStudents: crs.MaxStudents,
		Status:      crs.Status,
		CreatedAt:   null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
}

func (repo courseRepository) unrow(row courseRow) course.Course {
	return course.Course{
		ID:          row.ID,
		TeacherID:   row.TeacherID,
		Title:       row.Title,
		Slug:        row.Slug,
		Description: row.Description.String,
		Subject:     row.Subject.String,
		Level:       row.Level.String,
		PriceCents:  row.PriceCents,
		MaxStudents: row.MaxStudents,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo courseRepository) sessRow(sess course.Session) sessionRow {
	return sessionRow{
		ID:          sess.ID,
		CourseID:    sess.CourseID,
		Title:       sess.Title,
		Description: null.NewString(sess.Description, sess.Description != ""),
		StartTime:   null.TimeFrom(sess.StartTime.UTC()),
		EndTime:     null.TimeFrom(sess.EndTime.UTC()),
		PriceCents:  sess.PriceCents,
		IsVirtual:   sess.IsVirtual,
		MeetingLink: null.NewString(sess.MeetingLink, sess.MeetingLink != ""),
		Location:    null.NewString(sess.Location, sess.Location != ""),
		CreatedAt:   null.NewTime(sess.CreatedAt.UTC(), !sess.CreatedAt.IsZero()),
	}
}

func (repo courseRepository) unrowSess(row sessionRow) course.Session {
	return course.Session{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Description: row.Description.String,
		StartTime:   row.StartTime.Time,
		EndTime:     row.EndTime.Time,
		PriceCents:  row.PriceCents,
		IsVirtual:   row.IsVirtual,
		MeetingLink: row.MeetingLink.String,
		Location:    row.Location.String,
		CreatedAt:   row.CreatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps psql unique violations to course.ErrSlugExists
func (repo courseRepository) trapUniqueErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return course.ErrSlugExists
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := repo.row(crs)
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO course (id, teacher_id, title, slug, description, subject, level, price_cents, max_students, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		row.ID, row.TeacherID, row.Title, row.Slug, row.Description, row.Subject, row.Level,
		row.PriceCents, row.MaxStudents, row.Status, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, repo.trapUniqueErr(err, "inserting course")
	}
	return repo.unrow(row), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	query := `SELECT * FROM course`
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// courses with Title, Description or Subject matching the search keyword
		if filter.Search != "" {
			val := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s OR subject ILIKE %[1]s)", val))
		}
		if filter.Subject != "" {
			conds = append(conds, fmt.Sprintf("subject = %s", arg(filter.Subject)))
		}
		if filter.Level != "" {
			conds = append(conds, fmt.Sprintf("level = %s", arg(filter.Level)))
		}
		if filter.TeacherID != "" {
			conds = append(conds, fmt.Sprintf("teacher_id = %s", arg(filter.TeacherID)))
		}
		if filter.Status != "" {
			conds = append(conds, fmt.Sprintf("status = %s", arg(filter.Status)))
		}
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []courseRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.unrow(row))
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	exe := repo.getExec(exec)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return course.Course{}, course.ErrNotFound
		}
		if err := exe.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, filter.ID); err != nil {
			return course.Course{}, repo.trapNoRowsErr(err, "finding course by ID")
		}
	case filter.Slug != "":
		if err := exe.GetContext(ctx, &row, `SELECT * FROM course WHERE slug = $1`, filter.Slug); err != nil {
			return course.Course{}, repo.trapNoRowsErr(err, "finding course by slug")
		}
	default:
		return course.Course{}, course.ErrNotFound
	}

	return repo.unrow(row), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	row := repo.row(crs)
	res, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE course SET
			title = $2, slug = $3, description = $4, subject = $5, level = $6,
			price_cents = $7, max_students = $8, status = $9, updated_at = $10
		 WHERE id = $1`,
		row.ID, row.Title, row.Slug, row.Description, row.Subject, row.Level,
		row.PriceCents, row.MaxStudents, row.Status, row.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, repo.trapUniqueErr(err, "updating course")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return repo.unrow(row), nil
}

func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM course WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	return int(cnt), nil
}

func (repo courseRepository) CreateSession(ctx context.Context, sess course.Session, exec ...core.DBExecutor) (course.Session, error) {
	sess.ID = uuid.New().String()
	row := repo.sessRow(sess)
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO session (id, course_id, title, description, start_time, end_time, price_cents, is_virtual, meeting_link, location, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		row.ID, row.CourseID, row.Title, row.Description, row.StartTime, row.EndTime,
		row.PriceCents, row.IsVirtual, row.MeetingLink, row.Location, row.CreatedAt,
	)
	if err != nil {
		return course.Session{}, errors.Wrap(err, "inserting session")
	}
	return repo.unrowSess(row), nil
}

func (repo courseRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (course.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Session{}, course.ErrSessionNotFound
	}
	var row sessionRow
	if err := repo.getExec(exec).GetContext(ctx, &row, `SELECT * FROM session WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Session{}, course.ErrSessionNotFound
		}
		return course.Session{}, errors.Wrap(err, "finding session by ID")
	}
	return repo.unrowSess(row), nil
}

func (repo courseRepository) QueryCourseSessions(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Session, error) {
	var rows []sessionRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows,
		`SELECT * FROM session WHERE course_id = $1 ORDER BY start_time`, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course sessions")
	}
	sessions := make([]course.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, repo.unrowSess(row))
	}
	return sessions, nil
}
