package enroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
	emailsvc "github.com/trezcool/soko/services/email"
	inmemdb "github.com/trezcool/soko/storage/database/inmem"
	testutil "github.com/trezcool/soko/tests"
)

type fixtures struct {
	svc        *enroll.Service
	enrollRepo enroll.Repository
	crsRepo    course.Repository
	usrRepo    user.Repository
}

func setup(t *testing.T) fixtures {
	t.Helper()
	emailsvc.ClearSentMessages()

	db := inmemdb.NewDB()
	f := fixtures{
		enrollRepo: inmemdb.NewEnrollRepository(db),
		crsRepo:    inmemdb.NewCourseRepository(db),
		usrRepo:    inmemdb.NewUserRepository(db),
	}
	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig())
	f.svc = enroll.NewService(f.enrollRepo, f.usrRepo, f.crsRepo, mailSvc, testutil.NewLogger())
	return f
}

func TestService_Enroll_freeCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, f.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, f.crsRepo, teacher.ID, "Guitar 101", "guitar-101", 0, 0, course.StatusPublished)

	enr, err := f.svc.Enroll(ctx, student.ID, crs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if enr.Status != enroll.StatusApproved {
		t.Errorf("Status = %q, want %q", enr.Status, enroll.StatusApproved)
	}

	// a zeroed progress tracker is created on approval
	pr, err := f.enrollRepo.GetProgress(ctx, enr.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if pr.CompletedSessions != 0 || pr.CompletionPct != 0 {
		t.Errorf("unexpected progress: %+v", pr)
	}

	// student confirmation + teacher heads-up
	if n := len(emailsvc.SentMessages); n != 2 {
		t.Errorf("len(SentMessages) = %d, want 2", n)
	}

	if _, err = f.svc.Enroll(ctx, student.ID, crs.ID); errors.Cause(err) != enroll.ErrAlreadyEnrolled {
		t.Errorf("Enroll(again) error = %v, want %v", err, enroll.ErrAlreadyEnrolled)
	}
}

func TestService_Enroll_paidCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, f.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, f.crsRepo, teacher.ID, "Piano Pro", "piano-pro", 4999, 0, course.StatusPublished)

	enr, err := f.svc.Enroll(ctx, student.ID, crs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if enr.Status != enroll.StatusPending {
		t.Errorf("Status = %q, want %q", enr.Status, enroll.StatusPending)
	}

	// no notifications until payment settles
	if n := len(emailsvc.SentMessages); n != 0 {
		t.Errorf("len(SentMessages) = %d, want 0", n)
	}
}

func TestService_Enroll_edgeCases(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	draft := testutil.CreateCourse(t, f.crsRepo, "t1", "Drafty", "drafty", 0, 0, course.StatusDraft)
	if _, err := f.svc.Enroll(ctx, "u1", draft.ID); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("Enroll(draft) error = %v, want %v", err, course.ErrNotFound)
	}

	tiny := testutil.CreateCourse(t, f.crsRepo, "t1", "Tiny", "tiny", 0, 1, course.StatusPublished)
	testutil.CreateEnrollment(t, f.enrollRepo, "other", tiny.ID, enroll.StatusApproved)
	if _, err := f.svc.Enroll(ctx, "u1", tiny.ID); errors.Cause(err) != enroll.ErrCourseFull {
		t.Errorf("Enroll(full) error = %v, want %v", err, enroll.ErrCourseFull)
	}
}

func TestService_EnrollSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.crsRepo, "t1", "Piano", "piano", 1000, 0, course.StatusPublished)
	free := testutil.CreateSession(t, f.crsRepo, crs.ID, "Intro", 0, time.Now().Add(24*time.Hour))
	paid := testutil.CreateSession(t, f.crsRepo, crs.ID, "Week 1", 500, time.Now().Add(48*time.Hour))

	se, err := f.svc.EnrollSession(ctx, "u1", free.ID)
	if err != nil {
		t.Fatalf("EnrollSession() failed: %v", err)
	}
	if se.Status != enroll.StatusApproved {
		t.Errorf("Status = %q, want %q", se.Status, enroll.StatusApproved)
	}

	se, err = f.svc.EnrollSession(ctx, "u1", paid.ID)
	if err != nil {
		t.Fatalf("EnrollSession() failed: %v", err)
	}
	if se.Status != enroll.StatusPending {
		t.Errorf("Status = %q, want %q", se.Status, enroll.StatusPending)
	}
}

func TestService_RecordProgress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.crsRepo, "t1", "Piano", "piano", 0, 0, course.StatusPublished)
	for i, title := range []string{"Week 1", "Week 2", "Week 3", "Week 4"} {
		testutil.CreateSession(t, f.crsRepo, crs.ID, title, 0, time.Now().Add(time.Duration(i)*24*time.Hour))
	}
	enr := testutil.CreateEnrollment(t, f.enrollRepo, "u1", crs.ID, enroll.StatusApproved)

	pr, err := f.svc.RecordProgress(ctx, enr.ID, 2)
	if err != nil {
		t.Fatalf("RecordProgress() failed: %v", err)
	}
	if pr.CompletedSessions != 2 || pr.CompletionPct != 50 {
		t.Errorf("progress = (%d, %d%%), want (2, 50%%)", pr.CompletedSessions, pr.CompletionPct)
	}

	// completed count is clamped to the scheduled sessions
	pr, err = f.svc.RecordProgress(ctx, enr.ID, 10)
	if err != nil {
		t.Fatalf("RecordProgress() failed: %v", err)
	}
	if pr.CompletedSessions != 4 || pr.CompletionPct != 100 {
		t.Errorf("progress = (%d, %d%%), want (4, 100%%)", pr.CompletedSessions, pr.CompletionPct)
	}
}

func TestService_OnPaymentSucceeded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, f.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, f.crsRepo, teacher.ID, "Piano Pro", "piano-pro", 4999, 0, course.StatusPublished)
	enr := testutil.CreateEnrollment(t, f.enrollRepo, student.ID, crs.ID, enroll.StatusPending)

	intent := core.PaymentIntent{
		ID:       "pi_123",
		Status:   core.PaymentStatusSucceeded,
		Metadata: map[string]string{"user_id": student.ID, "course_id": crs.ID},
	}
	if err := f.svc.OnPaymentSucceeded(ctx, intent); err != nil {
		t.Fatalf("OnPaymentSucceeded() failed: %v", err)
	}

	enr, err := f.enrollRepo.GetEnrollment(ctx, enroll.GetFilter{ID: enr.ID})
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if enr.Status != enroll.StatusApproved {
		t.Errorf("Status = %q, want %q", enr.Status, enroll.StatusApproved)
	}
	if enr.PaymentIntentID != intent.ID {
		t.Errorf("PaymentIntentID = %q, want %q", enr.PaymentIntentID, intent.ID)
	}
	if _, err = f.enrollRepo.GetProgress(ctx, enr.ID); err != nil {
		t.Errorf("GetProgress() failed: %v", err)
	}
	sent := len(emailsvc.SentMessages)
	if sent != 2 {
		t.Errorf("len(SentMessages) = %d, want 2", sent)
	}

	// replayed events are no-ops
	if err = f.svc.OnPaymentSucceeded(ctx, intent); err != nil {
		t.Fatalf("OnPaymentSucceeded(replay) failed: %v", err)
	}
	if n := len(emailsvc.SentMessages); n != sent {
		t.Errorf("len(SentMessages) = %d, want %d", n, sent)
	}

	// cart checkout intents carry no direct-enroll metadata; ignored here
	if err = f.svc.OnPaymentSucceeded(ctx, core.PaymentIntent{ID: "pi_cart", Metadata: map[string]string{"cart_id": "c1"}}); err != nil {
		t.Errorf("OnPaymentSucceeded(cart intent) error = %v", err)
	}

	// unknown enrollments are swallowed so the webhook can be acked
	unknown := core.PaymentIntent{ID: "pi_404", Metadata: map[string]string{"user_id": "nope", "course_id": "nope"}}
	if err = f.svc.OnPaymentSucceeded(ctx, unknown); err != nil {
		t.Errorf("OnPaymentSucceeded(unknown) error = %v", err)
	}
}

func TestService_OnPaymentFailed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.crsRepo, "t1", "Piano Pro", "piano-pro", 4999, 0, course.StatusPublished)
	enr := testutil.CreateEnrollment(t, f.enrollRepo, "u1", crs.ID, enroll.StatusApproved)

	intent := core.PaymentIntent{ID: "pi_123", Metadata: map[string]string{"user_id": "u1", "course_id": crs.ID}}
	if err := f.svc.OnPaymentFailed(ctx, intent); err != nil {
		t.Fatalf("OnPaymentFailed() failed: %v", err)
	}

	enr, err := f.enrollRepo.GetEnrollment(ctx, enroll.GetFilter{ID: enr.ID})
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if enr.Status != enroll.StatusPending {
		t.Errorf("Status = %q, want %q", enr.Status, enroll.StatusPending)
	}

	// already pending: no-op
	if err = f.svc.OnPaymentFailed(ctx, intent); err != nil {
		t.Fatalf("OnPaymentFailed(replay) failed: %v", err)
	}
}
