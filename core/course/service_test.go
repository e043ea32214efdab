package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/course"
	inmemdb "github.com/trezcool/soko/storage/database/inmem"
	testutil "github.com/trezcool/soko/tests"
)

func setup(t *testing.T) (*course.Service, course.Repository) {
	t.Helper()

	db := inmemdb.NewDB()
	repo := inmemdb.NewCourseRepository(db)
	return course.NewService(repo, testutil.NewLogger()), repo
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	crs, err := svc.Create(ctx, "t1", course.NewCourse{
		Title:      "Algebra II: Advanced Topics!",
		Subject:    "math",
		Level:      course.LevelIntermediate,
		PriceCents: 4999,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if crs.ID == "" {
		t.Error("expected an ID to be set")
	}
	if crs.Slug != "algebra-ii-advanced-topics" {
		t.Errorf("Slug = %q", crs.Slug)
	}
	if crs.Status != course.StatusDraft {
		t.Errorf("Status = %q, want %q", crs.Status, course.StatusDraft)
	}

	// same title slugs to the same value
	_, err = svc.Create(ctx, "t2", course.NewCourse{
		Title:   "Algebra II? Advanced Topics",
		Subject: "math",
		Level:   course.LevelIntermediate,
	})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Create() error = %v, want ValidationError", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "title" {
		t.Errorf("unexpected field errors: %+v", vErr.Fields)
	}
}

func TestService_Publish(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, repo, "t1", "Guitar 101", "guitar-101", 0, 0, course.StatusDraft)

	crs, err := svc.Publish(ctx, crs.ID)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if !crs.IsPublished() {
		t.Error("expected course to be published")
	}

	// idempotent
	if crs, err = svc.Publish(ctx, crs.ID); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if !crs.IsPublished() {
		t.Error("expected course to stay published")
	}

	if _, err = svc.Publish(ctx, "a2e19481-4839-47bc-a28c-0b4125a4dcc4"); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("Publish() error = %v, want %v", err, course.ErrNotFound)
	}
}

func TestService_QueryPublished(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	testutil.CreateCourse(t, repo, "t1", "Drafty", "drafty", 0, 0, course.StatusDraft)
	pub1 := testutil.CreateCourse(t, repo, "t1", "Piano", "piano", 1000, 0, course.StatusPublished)
	pub2 := testutil.CreateCourse(t, repo, "t2", "Violin", "violin", 2000, 0, course.StatusPublished)

	courses, err := svc.QueryPublished(ctx, nil)
	if err != nil {
		t.Fatalf("QueryPublished() failed: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("len(courses) = %d, want 2", len(courses))
	}

	courses, err = svc.QueryPublished(ctx, &course.QueryFilter{TeacherID: pub2.TeacherID})
	if err != nil {
		t.Fatalf("QueryPublished() failed: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != pub2.ID {
		t.Errorf("unexpected courses: %+v", courses)
	}
	_ = pub1
}

func TestService_Update(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, repo, "t1", "Old Title", "old-title", 1000, 0, course.StatusDraft)

	price := int64(2500)
	crs, err := svc.Update(ctx, crs.ID, course.UpdateCourse{Title: "New Title", PriceCents: &price})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if crs.Title != "New Title" || crs.Slug != "new-title" {
		t.Errorf("Title = %q, Slug = %q", crs.Title, crs.Slug)
	}
	if crs.PriceCents != price {
		t.Errorf("PriceCents = %d, want %d", crs.PriceCents, price)
	}
}
