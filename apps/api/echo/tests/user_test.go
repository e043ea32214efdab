package tests

import (
	"net/http"
	"testing"

	"github.com/trezcool/soko/core/user"
	testutil "github.com/trezcool/soko/tests"
)

func Test_userApi_registerAndLogin(t *testing.T) {
	app := setup(t)

	body := marchallObj(t, map[string]interface{}{
		"name":             "Jane Doe",
		"username":         "jane",
		"email":            "jane@test.cd",
		"password":         "LordOfTheRings",
		"password_confirm": "LordOfTheRings",
		"roles":            []string{user.RoleAdmin}, // ignored
	})
	req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)

	var usr user.User
	decodeBody(t, rec, &usr)
	if usr.Username != "jane" || usr.Email != "jane@test.cd" {
		t.Errorf("unexpected user: %+v", usr)
	}
	if usr.IsAdmin() {
		t.Error("self-registration must not grant roles")
	}

	// duplicate username
	req, rec = newRequest(http.MethodPost, "/v1/users/register", body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// login with username
	body = marchallObj(t, map[string]string{"username": "jane", "password": "LordOfTheRings"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var res struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &res)
	if res.Token == "" {
		t.Fatal("expected a token")
	}

	// wrong password
	body = marchallObj(t, map[string]string{"username": "jane", "password": "nope"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// token works
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", res.Token)
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	decodeBody(t, rec, &usr)
	if usr.Username != "jane" {
		t.Errorf("Username = %q, want jane", usr.Username)
	}
}

func Test_userApi_adminOnly(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", user.AllRoles, true)

	req, rec := newRequest(http.MethodGet, "/v1/users")
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusUnauthorized)
	checkBody(t, rec, marchallObj(t, errMissingToken))

	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, student))
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusForbidden)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, admin))
	app.server.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	var users []user.User
	decodeBody(t, rec, &users)
	if len(users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(users))
	}
}
