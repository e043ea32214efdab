package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/soko/apps/api/echo"
	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/checkout"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
	emailsvc "github.com/trezcool/soko/services/email"
	inmemdb "github.com/trezcool/soko/storage/database/inmem"
	testutil "github.com/trezcool/soko/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// paymentServiceStub serves canned intents and webhook events.
type paymentServiceStub struct {
	intents      map[string]core.PaymentIntent
	lastCreated  core.PaymentIntent
	webhookEvent core.PaymentEvent
	webhookErr   error
}

var _ core.PaymentService = (*paymentServiceStub)(nil)

func (svc *paymentServiceStub) CreateIntent(ctx context.Context, amountCents int64, currency, receiptEmail string, metadata map[string]string) (core.PaymentIntent, error) {
	svc.lastCreated = core.PaymentIntent{
		ID:           "pi_created",
		ClientSecret: "pi_created_secret",
		Status:       core.PaymentStatusProcessing,
		AmountCents:  amountCents,
		Currency:     currency,
		ReceiptEmail: receiptEmail,
		Metadata:     metadata,
	}
	return svc.lastCreated, nil
}

func (svc *paymentServiceStub) RetrieveIntent(ctx context.Context, id string) (core.PaymentIntent, error) {
	if intent, ok := svc.intents[id]; ok {
		return intent, nil
	}
	return core.PaymentIntent{}, core.ErrPaymentIntentNotFound
}

func (svc *paymentServiceStub) VerifyWebhook(payload []byte, sigHeader string) (core.PaymentEvent, error) {
	if svc.webhookErr != nil {
		return core.PaymentEvent{}, svc.webhookErr
	}
	return svc.webhookEvent, nil
}

type testApp struct {
	server     echoapi.Server
	conf       *core.Config
	payments   *paymentServiceStub
	usrRepo    user.Repository
	crsRepo    course.Repository
	cartRepo   cart.Repository
	enrollRepo enroll.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()
	emailsvc.ClearSentMessages()

	conf := core.NewTestConfig()
	db := inmemdb.NewDB()

	app := &testApp{
		conf:       conf,
		payments:   &paymentServiceStub{intents: make(map[string]core.PaymentIntent)},
		usrRepo:    inmemdb.NewUserRepository(db),
		crsRepo:    inmemdb.NewCourseRepository(db),
		cartRepo:   inmemdb.NewCartRepository(db),
		enrollRepo: inmemdb.NewEnrollRepository(db),
	}

	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(conf, app.usrRepo, mailSvc, logger)
	crsSvc := course.NewService(app.crsRepo, logger)
	cartSvc := cart.NewService(app.cartRepo, app.crsRepo, logger)
	enrollSvc := enroll.NewService(app.enrollRepo, app.usrRepo, app.crsRepo, mailSvc, logger)
	checkoutSvc := checkout.NewService(db, app.payments, app.usrRepo, app.cartRepo, app.enrollRepo, usrSvc, enrollSvc, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	app.server = echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			CourseSvc:      crsSvc,
			CartSvc:        cartSvc,
			EnrollSvc:      enrollSvc,
			CheckoutSvc:    checkoutSvc,
			PaymentSvc:     app.payments,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
	return app
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(usr)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("status = %d, want %d - body: %s", rec.Code, wantCode, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkBody(t *testing.T, rec *httptest.ResponseRecorder, want []byte) {
	t.Helper()
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), want)
	if err != nil {
		t.Fatalf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("body = %s, want %s", rec.Body.String(), want)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response body: %v - body: %s", err, rec.Body.String())
	}
}

var errNotImplemented = errors.New("not implemented")
