package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/enroll"
)

type enrollRepository struct {
	db *DB
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(db *DB) *enrollRepository {
	return &enrollRepository{db: db}
}

func (repo *enrollRepository) CreateEnrollment(ctx context.Context, enr enroll.Enrollment, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, e := range repo.db.enrollments {
		if e.StudentID == enr.StudentID && e.CourseID == enr.CourseID {
			return enroll.Enrollment{}, enroll.ErrAlreadyEnrolled
		}
	}

	enr.ID = uuid.New().String()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *enrollRepository) GetEnrollment(ctx context.Context, filter enroll.GetFilter, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if enr, ok := repo.db.enrollments[filter.ID]; ok {
			return *enr, nil
		}
		return enroll.Enrollment{}, enroll.ErrNotFound
	}
	if filter.StudentID != "" && filter.CourseID != "" {
		for _, enr := range repo.db.enrollments {
			if enr.StudentID == filter.StudentID && enr.CourseID == filter.CourseID {
				return *enr, nil
			}
		}
	}
	return enroll.Enrollment{}, enroll.ErrNotFound
}

func (repo *enrollRepository) QueryEnrollments(ctx context.Context, filter *enroll.QueryFilter, exec ...core.DBExecutor) ([]enroll.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrs := make([]enroll.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if filter != nil {
			if filter.StudentID != "" && enr.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && enr.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && enr.Status != filter.Status {
				continue
			}
		}
		enrs = append(enrs, *enr)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *enrollRepository) UpdateEnrollment(ctx context.Context, enr enroll.Enrollment, exec ...core.DBExecutor) (enroll.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.enrollments[enr.ID]; !ok {
		return enroll.Enrollment{}, enroll.ErrNotFound
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *enrollRepository) CountCourseEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (repo *enrollRepository) CreateSessionEnrollment(ctx context.Context, se enroll.SessionEnrollment, exec ...core.DBExecutor) (enroll.SessionEnrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, e := range repo.db.sessionEnrollments {
		if e.StudentID == se.StudentID && e.SessionID == se.SessionID {
			return enroll.SessionEnrollment{}, enroll.ErrAlreadyEnrolled
		}
	}

	se.ID = uuid.New().String()
	repo.db.sessionEnrollments[se.ID] = &se
	return se, nil
}

func (repo *enrollRepository) GetSessionEnrollment(ctx context.Context, studentID, sessionID string, exec ...core.DBExecutor) (enroll.SessionEnrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, se := range repo.db.sessionEnrollments {
		if se.StudentID == studentID && se.SessionID == sessionID {
			return *se, nil
		}
	}
	return enroll.SessionEnrollment{}, enroll.ErrNotFound
}

func (repo *enrollRepository) QueryStudentSessionEnrollments(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]enroll.SessionEnrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ses := make([]enroll.SessionEnrollment, 0)
	for _, se := range repo.db.sessionEnrollments {
		if se.StudentID == studentID {
			ses = append(ses, *se)
		}
	}
	sort.Slice(ses, func(i, j int) bool { return ses[i].EnrolledAt.Before(ses[j].EnrolledAt) })
	return ses, nil
}

func (repo *enrollRepository) CreateProgress(ctx context.Context, pr enroll.CourseProgress, exec ...core.DBExecutor) (enroll.CourseProgress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pr.ID = uuid.New().String()
	repo.db.progress[pr.ID] = &pr
	return pr, nil
}

func (repo *enrollRepository) GetProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (enroll.CourseProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, pr := range repo.db.progress {
		if pr.EnrollmentID == enrollmentID {
			return *pr, nil
		}
	}
	return enroll.CourseProgress{}, enroll.ErrNotFound
}

func (repo *enrollRepository) UpdateProgress(ctx context.Context, pr enroll.CourseProgress, exec ...core.DBExecutor) (enroll.CourseProgress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.progress[pr.ID]; !ok {
		return enroll.CourseProgress{}, enroll.ErrNotFound
	}
	repo.db.progress[pr.ID] = &pr
	return pr, nil
}
