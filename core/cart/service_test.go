package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/course"
	inmemdb "github.com/trezcool/soko/storage/database/inmem"
	testutil "github.com/trezcool/soko/tests"
)

func setup(t *testing.T) (*cart.Service, course.Repository) {
	t.Helper()

	db := inmemdb.NewDB()
	crsRepo := inmemdb.NewCourseRepository(db)
	return cart.NewService(inmemdb.NewCartRepository(db), crsRepo, testutil.NewLogger()), crsRepo
}

func TestService_Resolve(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	crt, err := svc.ResolveForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ResolveForUser() failed: %v", err)
	}
	if crt.ID == "" || crt.UserID != "u1" {
		t.Errorf("unexpected cart: %+v", crt)
	}
	if !crt.IsEmpty() {
		t.Error("expected a fresh cart to be empty")
	}

	// same cart on subsequent calls
	again, err := svc.ResolveForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ResolveForUser() failed: %v", err)
	}
	if again.ID != crt.ID {
		t.Errorf("cart ID = %s, want %s", again.ID, crt.ID)
	}

	anon, err := svc.ResolveForSessionKey(ctx, "sesh-123")
	if err != nil {
		t.Fatalf("ResolveForSessionKey() failed: %v", err)
	}
	if anon.SessionKey != "sesh-123" || anon.UserID != "" {
		t.Errorf("unexpected anonymous cart: %+v", anon)
	}
}

func TestService_AddCourse(t *testing.T) {
	svc, crsRepo := setup(t)
	ctx := context.Background()

	draft := testutil.CreateCourse(t, crsRepo, "t1", "Drafty", "drafty", 1000, 0, course.StatusDraft)
	pub := testutil.CreateCourse(t, crsRepo, "t1", "Piano", "piano", 4999, 0, course.StatusPublished)

	crt, err := svc.ResolveForSessionKey(ctx, "sesh")
	if err != nil {
		t.Fatalf("ResolveForSessionKey() failed: %v", err)
	}

	// draft courses are not purchasable
	if _, err = svc.AddCourse(ctx, crt, draft.ID); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("AddCourse(draft) error = %v, want %v", err, course.ErrNotFound)
	}

	crt, err = svc.AddCourse(ctx, crt, pub.ID)
	if err != nil {
		t.Fatalf("AddCourse() failed: %v", err)
	}
	if len(crt.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(crt.Items))
	}
	item := crt.Items[0]
	if item.Kind != cart.KindCourse || item.CourseID != pub.ID {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.Title != pub.Title || item.PriceCents != pub.PriceCents {
		t.Errorf("item snapshot = (%q, %d), want (%q, %d)", item.Title, item.PriceCents, pub.Title, pub.PriceCents)
	}
	if crt.TotalCents() != pub.PriceCents {
		t.Errorf("TotalCents() = %d, want %d", crt.TotalCents(), pub.PriceCents)
	}

	if _, err = svc.AddCourse(ctx, crt, pub.ID); errors.Cause(err) != cart.ErrDuplicateItem {
		t.Errorf("AddCourse(again) error = %v, want %v", err, cart.ErrDuplicateItem)
	}
}

func TestService_AddSession(t *testing.T) {
	svc, crsRepo := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, crsRepo, "t1", "Piano", "piano", 4999, 0, course.StatusPublished)
	sess := testutil.CreateSession(t, crsRepo, crs.ID, "Week 1", 500, time.Now().Add(24*time.Hour))

	crt, err := svc.ResolveForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ResolveForUser() failed: %v", err)
	}

	crt, err = svc.AddSession(ctx, crt, sess.ID)
	if err != nil {
		t.Fatalf("AddSession() failed: %v", err)
	}
	if len(crt.Items) != 1 || crt.Items[0].Kind != cart.KindSession || crt.Items[0].SessionID != sess.ID {
		t.Errorf("unexpected items: %+v", crt.Items)
	}
	if crt.TotalCents() != sess.PriceCents {
		t.Errorf("TotalCents() = %d, want %d", crt.TotalCents(), sess.PriceCents)
	}

	if _, err = svc.AddSession(ctx, crt, "a2e19481-4839-47bc-a28c-0b4125a4dcc4"); errors.Cause(err) != course.ErrSessionNotFound {
		t.Errorf("AddSession() error = %v, want %v", err, course.ErrSessionNotFound)
	}
}

func TestService_RemoveAndClear(t *testing.T) {
	svc, crsRepo := setup(t)
	ctx := context.Background()

	pub1 := testutil.CreateCourse(t, crsRepo, "t1", "Piano", "piano", 1000, 0, course.StatusPublished)
	pub2 := testutil.CreateCourse(t, crsRepo, "t1", "Violin", "violin", 2000, 0, course.StatusPublished)

	crt, err := svc.ResolveForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ResolveForUser() failed: %v", err)
	}
	if crt, err = svc.AddCourse(ctx, crt, pub1.ID); err != nil {
		t.Fatalf("AddCourse() failed: %v", err)
	}
	if crt, err = svc.AddCourse(ctx, crt, pub2.ID); err != nil {
		t.Fatalf("AddCourse() failed: %v", err)
	}

	crt, err = svc.Remove(ctx, crt, crt.Items[0].ID)
	if err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if len(crt.Items) != 1 || crt.Items[0].CourseID != pub2.ID {
		t.Errorf("unexpected items: %+v", crt.Items)
	}

	if _, err = svc.Remove(ctx, crt, "nope"); errors.Cause(err) != cart.ErrItemNotFound {
		t.Errorf("Remove() error = %v, want %v", err, cart.ErrItemNotFound)
	}

	if err = svc.Clear(ctx, crt); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if crt, err = svc.Get(ctx, crt.ID); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !crt.IsEmpty() {
		t.Error("expected cart to be empty after Clear()")
	}
}
