package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSlugExists      = errors.New("a course with this title already exists")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Title, Description or Subject.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		CreateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		QueryCourseSessions(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Session, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Create registers a new draft course owned by teacherID.
func (svc *Service) Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		TeacherID:   teacherID,
		Title:       nc.Title,
		Slug:        core.Slugify(nc.Title),
		Description: nc.Description,
		Subject:     nc.Subject,
		Level:       nc.Level,
		PriceCents:  nc.PriceCents,
		MaxStudents: nc.MaxStudents,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		if errors.Cause(err) == ErrSlugExists {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "title", Error: err.Error()})
		}
		return Course{}, err
	}
	return crs, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

// QueryPublished lists only courses visible to the catalog.
func (svc *Service) QueryPublished(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	filter.Status = StatusPublished
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{ID: id})
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{Slug: core.CleanString(slug, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.GetByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Title != "" && uc.Title != crs.Title {
		crs.Title = uc.Title
		crs.Slug = core.Slugify(uc.Title)
	}
	if uc.Description != "" {
		crs.Description = uc.Description
	}
	if uc.Subject != "" {
		crs.Subject = uc.Subject
	}
	if uc.Level != "" {
		crs.Level = uc.Level
	}
	if uc.PriceCents != nil {
		crs.PriceCents = *uc.PriceCents
	}
	if uc.MaxStudents != nil {
		crs.MaxStudents = *uc.MaxStudents
	}
	crs.UpdatedAt = time.Now().UTC()

	crs, err = svc.repo.UpdateCourse(ctx, crs)
	if err != nil {
		if errors.Cause(err) == ErrSlugExists {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "title", Error: err.Error()})
		}
		return Course{}, err
	}
	return crs, nil
}

// Publish flips a course to the published status, making it visible in the
// catalog and purchasable.
func (svc *Service) Publish(ctx context.Context, id string) (Course, error) {
	crs, err := svc.GetByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.IsPublished() {
		return crs, nil
	}
	crs.Status = StatusPublished
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteCoursesByID(ctx, ids)
	return err
}

// AddSession schedules a new session on a course.
func (svc *Service) AddSession(ctx context.Context, courseID string, ns NewSession) (Session, error) {
	crs, err := svc.GetByID(ctx, courseID)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		CourseID:    crs.ID,
		Title:       ns.Title,
		Description: ns.Description,
		StartTime:   ns.StartTime.UTC(),
		EndTime:     ns.EndTime.UTC(),
		PriceCents:  ns.PriceCents,
		IsVirtual:   ns.IsVirtual,
		MeetingLink: ns.MeetingLink,
		Location:    ns.Location,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateSession(ctx, sess)
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) QuerySessions(ctx context.Context, courseID string) ([]Session, error) {
	return svc.repo.QueryCourseSessions(ctx, courseID)
}
