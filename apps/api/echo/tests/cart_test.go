package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/user"
	testutil "github.com/trezcool/soko/tests"
)

type cartResponse struct {
	cart.Cart
	TotalCents int64 `json:"total_cents"`
}

func Test_cartApi_retrieve(t *testing.T) {
	app := setup(t)

	// no token, no session header
	req, rec := newRequest(http.MethodGet, "/v1/cart")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// anonymous cart via session header
	req, rec = newRequest(http.MethodGet, "/v1/cart")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var res cartResponse
	decodeBody(t, rec, &res)
	if res.SessionKey != "sesh-123" || len(res.Items) != 0 || res.TotalCents != 0 {
		t.Errorf("unexpected cart: %+v", res)
	}

	// authenticated cart
	usr := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	req, rec = newAuthRequest(http.MethodGet, "/v1/cart", getToken(t, usr))
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	decodeBody(t, rec, &res)
	if res.UserID != usr.ID {
		t.Errorf("UserID = %q, want %q", res.UserID, usr.ID)
	}
}

func Test_cartApi_addCourse(t *testing.T) {
	app := setup(t)

	draft := testutil.CreateCourse(t, app.crsRepo, "t1", "Drafty", "drafty", 1000, 0, course.StatusDraft)
	pub := testutil.CreateCourse(t, app.crsRepo, "t1", "Piano", "piano", 4999, 0, course.StatusPublished)

	// draft courses are not purchasable
	req, rec := newRequest(http.MethodPost, "/v1/cart/courses/"+draft.ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNotFound)

	req, rec = newRequest(http.MethodPost, "/v1/cart/courses/"+pub.ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var res cartResponse
	decodeBody(t, rec, &res)
	if len(res.Items) != 1 || res.Items[0].CourseID != pub.ID {
		t.Fatalf("unexpected items: %+v", res.Items)
	}
	if res.TotalCents != pub.PriceCents {
		t.Errorf("TotalCents = %d, want %d", res.TotalCents, pub.PriceCents)
	}

	// duplicates are rejected
	req, rec = newRequest(http.MethodPost, "/v1/cart/courses/"+pub.ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)
	checkBody(t, rec, marchallObj(t, httpErr{Error: "item is already in the cart"}))
}

func Test_cartApi_addAndRemoveSession(t *testing.T) {
	app := setup(t)

	crs := testutil.CreateCourse(t, app.crsRepo, "t1", "Piano", "piano", 4999, 0, course.StatusPublished)
	sess := testutil.CreateSession(t, app.crsRepo, crs.ID, "Week 1", 500, time.Now().Add(24*time.Hour))

	req, rec := newRequest(http.MethodPost, "/v1/cart/sessions/"+sess.ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var res cartResponse
	decodeBody(t, rec, &res)
	if len(res.Items) != 1 || res.Items[0].SessionID != sess.ID {
		t.Fatalf("unexpected items: %+v", res.Items)
	}

	req, rec = newRequest(http.MethodDelete, "/v1/cart/items/"+res.Items[0].ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	decodeBody(t, rec, &res)
	if len(res.Items) != 0 {
		t.Errorf("unexpected items: %+v", res.Items)
	}

	// removing twice 404s
	req, rec = newRequest(http.MethodDelete, "/v1/cart/items/nope")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNotFound)
}

func Test_cartApi_createPaymentIntent(t *testing.T) {
	app := setup(t)

	pub := testutil.CreateCourse(t, app.crsRepo, "t1", "Piano", "piano", 4999, 0, course.StatusPublished)

	// empty cart
	req, rec := newRequest(http.MethodPost, "/v1/cart/payment-intent")
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	req, rec = newRequest(http.MethodPost, "/v1/cart/courses/"+pub.ID)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	// guests supply a receipt email
	body := marchallObj(t, map[string]string{"receipt_email": "Jane@Example.com"})
	req, rec = newRequest(http.MethodPost, "/v1/cart/payment-intent", body)
	req.Header.Set("X-Cart-Session", "sesh-123")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)

	var res struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
		AmountCents     int64  `json:"amount_cents"`
	}
	decodeBody(t, rec, &res)
	if res.PaymentIntentID == "" || res.ClientSecret == "" {
		t.Errorf("unexpected response: %+v", res)
	}
	if res.AmountCents != pub.PriceCents {
		t.Errorf("AmountCents = %d, want %d", res.AmountCents, pub.PriceCents)
	}

	created := app.payments.lastCreated
	if created.ReceiptEmail != "jane@example.com" {
		t.Errorf("ReceiptEmail = %q", created.ReceiptEmail)
	}
	if created.Metadata["cart_id"] == "" || created.Metadata["session_key"] != "sesh-123" {
		t.Errorf("unexpected metadata: %+v", created.Metadata)
	}

	// authenticated shoppers are identified by user ID instead
	usr := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, usr)
	req, rec = newAuthRequest(http.MethodPost, "/v1/cart/courses/"+pub.ID, token)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	req, rec = newAuthRequest(http.MethodPost, "/v1/cart/payment-intent", token)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)

	created = app.payments.lastCreated
	if created.Metadata["checkout_user_id"] != usr.ID {
		t.Errorf("unexpected metadata: %+v", created.Metadata)
	}
	if created.ReceiptEmail != usr.Email {
		t.Errorf("ReceiptEmail = %q, want %q", created.ReceiptEmail, usr.Email)
	}
}
