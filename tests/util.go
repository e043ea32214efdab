package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
)

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func NewLogger() core.Logger { return nopLogger{} }

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	teacherID, title, slug string,
	priceCents int64,
	maxStudents int,
	status string,
) course.Course {
	t.Helper()

	tstamp := time.Now().UTC()
	crs := course.Course{
		TeacherID:   teacherID,
		Title:       title,
		Slug:        slug,
		Subject:     "math",
		Level:       course.LevelBeginner,
		PriceCents:  priceCents,
		MaxStudents: maxStudents,
		Status:      status,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateSession(
	t *testing.T,
	repo course.Repository,
	courseID, title string,
	priceCents int64,
	start time.Time,
) course.Session {
	t.Helper()

	sess := course.Session{
		CourseID:   courseID,
		Title:      title,
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		PriceCents: priceCents,
		IsVirtual:  true,
		CreatedAt:  time.Now().UTC(),
	}
	sess, err := repo.CreateSession(context.Background(), sess)
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func CreateEnrollment(
	t *testing.T,
	repo enroll.Repository,
	studentID, courseID, status string,
) enroll.Enrollment {
	t.Helper()

	tstamp := time.Now().UTC()
	enr := enroll.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     status,
		EnrolledAt: tstamp,
		UpdatedAt:  tstamp,
	}
	enr, err := repo.CreateEnrollment(context.Background(), enr)
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return enr
}

func AddCartItem(
	t *testing.T,
	repo cart.Repository,
	item cart.Item,
) cart.Item {
	t.Helper()

	item.AddedAt = time.Now().UTC()
	item, err := repo.AddItem(context.Background(), item)
	if err != nil {
		t.Fatalf("AddCartItem() failed: %v", err)
	}
	return item
}
