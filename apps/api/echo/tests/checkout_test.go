package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/checkout"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
	testutil "github.com/trezcool/soko/tests"
)

func checkCartRedirect(t *testing.T, rec *httptest.ResponseRecorder, wantMessage string) {
	t.Helper()
	loc := rec.Header().Get("Location")
	u, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("parsing Location %q: %v", loc, err)
	}
	if !strings.HasSuffix(u.Path, "/cart") {
		t.Errorf("Location path = %q, want /cart", u.Path)
	}
	if got := u.Query().Get("message"); got != wantMessage {
		t.Errorf("message = %q, want %q", got, wantMessage)
	}
}

func Test_checkoutApi_success(t *testing.T) {
	app := setup(t)

	crs := testutil.CreateCourse(t, app.crsRepo, "t1", "Piano Pro", "piano-pro", 4999, 0, course.StatusPublished)

	// checkout errors redirect back to the cart with a message
	req, rec := newRequest(http.MethodGet, "/v1/checkout/success")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusSeeOther)
	checkCartRedirect(t, rec, "Missing payment reference.")

	req, rec = newRequest(http.MethodGet, "/v1/checkout/success?payment_intent=pi_404")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusSeeOther)
	checkCartRedirect(t, rec, "We could not find your payment. Please try again.")

	app.payments.intents["pi_pending"] = core.PaymentIntent{ID: "pi_pending", Status: core.PaymentStatusProcessing}
	req, rec = newRequest(http.MethodGet, "/v1/checkout/success?payment_intent=pi_pending")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusSeeOther)
	checkCartRedirect(t, rec, "Your payment could not be verified. Please try again.")

	app.payments.intents["pi_ok"] = core.PaymentIntent{
		ID:           "pi_ok",
		Status:       core.PaymentStatusSucceeded,
		ReceiptEmail: "jane@example.com",
	}
	req, rec = newRequest(http.MethodGet, "/v1/checkout/success?payment_intent=pi_ok")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusSeeOther)
	checkCartRedirect(t, rec, "Your cart is empty.")

	// seed the guest cart and complete for real
	req, rec = newRequest(http.MethodPost, "/v1/cart/courses/"+crs.ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	// a guest whose email already has an account is told to log in
	testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	app.payments.intents["pi_known"] = core.PaymentIntent{ID: "pi_known", Status: core.PaymentStatusSucceeded, ReceiptEmail: "hero@test.cd"}
	req, rec = newRequest(http.MethodGet, "/v1/checkout/success?payment_intent=pi_known")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusSeeOther)
	checkCartRedirect(t, rec, "An account with this email already exists. Log in to complete your purchase.")

	req, rec = newRequest(http.MethodGet, "/v1/checkout/success?payment_intent=pi_ok")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var receipt checkout.Receipt
	decodeBody(t, rec, &receipt)
	if receipt.PaymentIntentID != "pi_ok" {
		t.Errorf("PaymentIntentID = %q", receipt.PaymentIntentID)
	}
	if receipt.User.Email != "jane@example.com" {
		t.Errorf("User.Email = %q", receipt.User.Email)
	}
	if len(receipt.Enrollments) != 1 || receipt.Enrollments[0].CourseID != crs.ID {
		t.Errorf("unexpected enrollments: %+v", receipt.Enrollments)
	}
	if receipt.TotalCents != crs.PriceCents {
		t.Errorf("TotalCents = %d, want %d", receipt.TotalCents, crs.PriceCents)
	}

	// the cart was cleared
	req, rec = newRequest(http.MethodGet, "/v1/cart")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var res cartResponse
	decodeBody(t, rec, &res)
	if len(res.Items) != 0 {
		t.Errorf("unexpected items: %+v", res.Items)
	}
}

func Test_checkoutApi_success_authenticated(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, app.crsRepo, "t1", "Piano Pro", "piano-pro", 4999, 0, course.StatusPublished)
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/cart/courses/"+crs.ID, token)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	app.payments.intents["pi_ok"] = core.PaymentIntent{ID: "pi_ok", Status: core.PaymentStatusSucceeded, ReceiptEmail: usr.Email}
	req, rec = newAuthRequest(http.MethodGet, "/v1/checkout/success?payment_intent=pi_ok", token)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var receipt checkout.Receipt
	decodeBody(t, rec, &receipt)
	if receipt.User.ID != usr.ID {
		t.Errorf("User.ID = %q, want %q", receipt.User.ID, usr.ID)
	}

	// no guest account was provisioned
	users, err := app.usrRepo.QueryUsers(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("QueryUsers() failed: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("len(users) = %d, want 1", len(users))
	}
}

func Test_checkoutApi_webhook(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, app.crsRepo, teacher.ID, "Piano Pro", "piano-pro", 4999, 0, course.StatusPublished)
	enr := testutil.CreateEnrollment(t, app.enrollRepo, student.ID, crs.ID, enroll.StatusPending)

	// bad signature
	app.payments.webhookErr = errNotImplemented
	req, rec := newRequest(http.MethodPost, "/v1/payments/webhook", []byte("{}"))
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)
	checkBody(t, rec, marchallObj(t, httpErr{Error: "invalid webhook"}))
	app.payments.webhookErr = nil

	// a succeeded payment approves the pending enrollment
	app.payments.webhookEvent = core.PaymentEvent{
		ID:   "evt_1",
		Type: core.PaymentEventSucceeded,
		Intent: core.PaymentIntent{
			ID:       "pi_123",
			Status:   core.PaymentStatusSucceeded,
			Metadata: map[string]string{"user_id": student.ID, "course_id": crs.ID},
		},
	}
	req, rec = newRequest(http.MethodPost, "/v1/payments/webhook", []byte("{}"))
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	refreshed, err := app.enrollRepo.GetEnrollment(req.Context(), enroll.GetFilter{ID: enr.ID})
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if refreshed.Status != enroll.StatusApproved {
		t.Errorf("Status = %q, want %q", refreshed.Status, enroll.StatusApproved)
	}

	// unhandled event types are acked
	app.payments.webhookEvent = core.PaymentEvent{ID: "evt_2", Type: "charge.refunded"}
	req, rec = newRequest(http.MethodPost, "/v1/payments/webhook", []byte("{}"))
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
}
