package enroll

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this course")
	ErrCourseFull      = errors.New("course is full")
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		// CountCourseEnrollments counts non-failed enrollments towards the
		// course capacity.
		CountCourseEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)

		CreateSessionEnrollment(ctx context.Context, se SessionEnrollment, exec ...core.DBExecutor) (SessionEnrollment, error)
		GetSessionEnrollment(ctx context.Context, studentID, sessionID string, exec ...core.DBExecutor) (SessionEnrollment, error)
		QueryStudentSessionEnrollments(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]SessionEnrollment, error)

		CreateProgress(ctx context.Context, pr CourseProgress, exec ...core.DBExecutor) (CourseProgress, error)
		GetProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (CourseProgress, error)
		UpdateProgress(ctx context.Context, pr CourseProgress, exec ...core.DBExecutor) (CourseProgress, error)
	}

	Service struct {
		repo    Repository
		users   user.Repository
		courses course.Repository
		mail    core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, userRepo user.Repository, courseRepo course.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   userRepo,
		courses: courseRepo,
		mail:    mailSvc,
		logger:  logger,
	}
}

// Enroll signs a student up for a published course. Free courses are approved
// on the spot with a fresh progress tracker; paid courses start out pending
// until payment settles.
func (svc *Service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: courseID})
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsPublished() {
		return Enrollment{}, course.ErrNotFound
	}
	if err = svc.checkCapacity(ctx, crs); err != nil {
		return Enrollment{}, err
	}

	now := time.Now().UTC()
	enr := Enrollment{
		StudentID:  studentID,
		CourseID:   crs.ID,
		Status:     StatusPending,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	if crs.IsFree() {
		enr.Status = StatusApproved
	}

	enr, err = svc.repo.CreateEnrollment(ctx, enr)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.IsApproved() {
		if _, err = svc.EnsureProgress(ctx, enr.ID); err != nil {
			return Enrollment{}, err
		}
		svc.NotifyEnrollment(ctx, enr)
	}
	return enr, nil
}

// EnrollSession signs a student up for a single course session.
func (svc *Service) EnrollSession(ctx context.Context, studentID, sessionID string) (SessionEnrollment, error) {
	sess, err := svc.courses.GetSession(ctx, sessionID)
	if err != nil {
		return SessionEnrollment{}, err
	}
	se := SessionEnrollment{
		StudentID:  studentID,
		SessionID:  sess.ID,
		Status:     StatusPending,
		EnrolledAt: time.Now().UTC(),
	}
	if sess.PriceCents == 0 {
		se.Status = StatusApproved
	}
	return svc.repo.CreateSessionEnrollment(ctx, se)
}

func (svc *Service) checkCapacity(ctx context.Context, crs course.Course) error {
	if crs.MaxStudents == 0 {
		return nil
	}
	count, err := svc.repo.CountCourseEnrollments(ctx, crs.ID)
	if err != nil {
		return err
	}
	if count >= crs.MaxStudents {
		return ErrCourseFull
	}
	return nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
}

func (svc *Service) QueryForStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, &QueryFilter{StudentID: studentID})
}

func (svc *Service) QueryForCourse(ctx context.Context, courseID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, &QueryFilter{CourseID: courseID})
}

// Complete marks an approved enrollment as finished.
func (svc *Service) Complete(ctx context.Context, id string) (Enrollment, error) {
	enr, err := svc.GetByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	enr.Status = StatusCompleted
	enr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// EnsureProgress returns the enrollment's progress tracker, creating a zeroed
// one if none exists yet.
func (svc *Service) EnsureProgress(ctx context.Context, enrollmentID string) (CourseProgress, error) {
	pr, err := svc.repo.GetProgress(ctx, enrollmentID)
	if err == nil {
		return pr, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return CourseProgress{}, err
	}
	return svc.repo.CreateProgress(ctx, CourseProgress{
		EnrollmentID: enrollmentID,
		UpdatedAt:    time.Now().UTC(),
	})
}

// RecordProgress updates the completed-session counter and recomputes the
// completion percentage against the course's scheduled sessions.
func (svc *Service) RecordProgress(ctx context.Context, enrollmentID string, completedSessions int) (CourseProgress, error) {
	enr, err := svc.GetByID(ctx, enrollmentID)
	if err != nil {
		return CourseProgress{}, err
	}
	pr, err := svc.EnsureProgress(ctx, enr.ID)
	if err != nil {
		return CourseProgress{}, err
	}
	sessions, err := svc.courses.QueryCourseSessions(ctx, enr.CourseID)
	if err != nil {
		return CourseProgress{}, err
	}

	pr.CompletedSessions = completedSessions
	pr.CompletionPct = 100
	if total := len(sessions); total > 0 {
		if completedSessions > total {
			pr.CompletedSessions = total
		}
		pr.CompletionPct = pr.CompletedSessions * 100 / total
	}
	pr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProgress(ctx, pr)
}

// OnPaymentSucceeded approves the enrollment referenced by the payment
// intent's metadata. It is idempotent: replayed events find the enrollment
// already approved and leave it alone. A missing enrollment or course is
// logged and swallowed so the webhook can be acked.
func (svc *Service) OnPaymentSucceeded(ctx context.Context, intent core.PaymentIntent) error {
	studentID, courseID := intent.Metadata["user_id"], intent.Metadata["course_id"]
	if studentID == "" || courseID == "" {
		return nil // checkout payments carry cart metadata instead
	}

	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{StudentID: studentID, CourseID: courseID})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return err
		}
		svc.logger.Warn(fmt.Sprintf("payment %s: no enrollment for student=%s course=%s", intent.ID, studentID, courseID))
		return nil
	}
	if enr.IsApproved() {
		return nil
	}

	enr.Status = StatusApproved
	enr.PaymentIntentID = intent.ID
	enr.UpdatedAt = time.Now().UTC()
	if enr, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
		return err
	}
	if _, err = svc.EnsureProgress(ctx, enr.ID); err != nil {
		return err
	}
	svc.NotifyEnrollment(ctx, enr)
	return nil
}

// OnPaymentFailed puts the enrollment referenced by the payment intent's
// metadata back to pending. Unknown enrollments are logged and swallowed.
func (svc *Service) OnPaymentFailed(ctx context.Context, intent core.PaymentIntent) error {
	studentID, courseID := intent.Metadata["user_id"], intent.Metadata["course_id"]
	if studentID == "" || courseID == "" {
		return nil
	}

	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{StudentID: studentID, CourseID: courseID})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return err
		}
		svc.logger.Warn(fmt.Sprintf("failed payment %s: no enrollment for student=%s course=%s", intent.ID, studentID, courseID))
		return nil
	}
	if enr.Status == StatusPending {
		return nil
	}

	enr.Status = StatusPending
	enr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateEnrollment(ctx, enr)
	return err
}

// NotifyEnrollment emails a confirmation to the student and a heads-up to the
// course's teacher. Best-effort: lookup failures are logged, not returned.
func (svc *Service) NotifyEnrollment(ctx context.Context, enr Enrollment) {
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: enr.StudentID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment %s: loading student: %v", enr.ID, err), err)
		return
	}
	crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: enr.CourseID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment %s: loading course: %v", enr.ID, err), err)
		return
	}

	msgs := []*core.EmailMessage{{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("You are enrolled in %s", crs.Title),
		TemplateName: "enrollment_confirmation",
		TemplateData: struct {
			StudentName string
			CourseTitle string
		}{student.Name, crs.Title},
	}}

	teacher, err := svc.users.GetUser(ctx, user.GetFilter{ID: crs.TeacherID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment %s: loading teacher: %v", enr.ID, err), err)
	} else {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
			Subject:      fmt.Sprintf("New enrollment in %s", crs.Title),
			TemplateName: "teacher_new_enrollment",
			TemplateData: struct {
				TeacherName string
				StudentName string
				CourseTitle string
			}{teacher.Name, student.Name, crs.Title},
		})
	}
	svc.mail.SendMessages(msgs...)
}

// NotifySessionEnrollment emails a confirmation for a session booking.
func (svc *Service) NotifySessionEnrollment(ctx context.Context, se SessionEnrollment) {
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: se.StudentID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying session enrollment %s: loading student: %v", se.ID, err), err)
		return
	}
	sess, err := svc.courses.GetSession(ctx, se.SessionID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying session enrollment %s: loading session: %v", se.ID, err), err)
		return
	}
	crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: sess.CourseID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying session enrollment %s: loading course: %v", se.ID, err), err)
		return
	}

	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("You are booked for %s", sess.Title),
		TemplateName: "enrollment_confirmation",
		TemplateData: struct {
			StudentName string
			CourseTitle string
		}{student.Name, fmt.Sprintf("%s (%s)", crs.Title, sess.Title)},
	})
}
