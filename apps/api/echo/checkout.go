package echoapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/checkout"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
)

// webhook payloads are small; cap reads to keep rogue requests cheap
const maxWebhookBodyBytes = 64 << 10 // 64KB

type checkoutApi struct {
	conf      *core.Config
	svc       *checkout.Service
	enrollSvc *enroll.Service
	payments  core.PaymentService
	userSvc   *user.Service
	logger    core.Logger
}

func registerCheckoutAPI(
	g *echo.Group,
	conf *core.Config,
	svc *checkout.Service,
	enrollSvc *enroll.Service,
	payments core.PaymentService,
	userSvc *user.Service,
	logger core.Logger,
) {
	api := checkoutApi{
		conf:      conf,
		svc:       svc,
		enrollSvc: enrollSvc,
		payments:  payments,
		userSvc:   userSvc,
		logger:    logger,
	}

	g.GET("/checkout/success", api.success, optionalAuthMiddleware())
	g.POST("/payments/webhook", api.webhook)
}

// Handlers

// success finalizes a purchase after the frontend confirmed the payment.
// Checkout errors redirect back to the cart view with a user-visible message
// so the shopper can retry; a completed purchase returns the receipt.
func (api *checkoutApi) success(ctx echo.Context) error {
	paymentRef := ctx.QueryParam("payment_intent")
	if paymentRef == "" {
		return api.redirectToCart(ctx, "Missing payment reference.")
	}

	identity := checkout.Identity{SessionKey: ctx.Request().Header.Get(cartSessionHeader)}
	if usr, err := getContextUser(ctx, api.userSvc); err == nil {
		identity.User = &usr
	}

	receipt, err := api.svc.Complete(ctx.Request().Context(), paymentRef, identity)
	if err != nil {
		switch errors.Cause(err) {
		case checkout.ErrPaymentNotFound:
			return api.redirectToCart(ctx, "We could not find your payment. Please try again.")
		case checkout.ErrPaymentVerificationFailed:
			return api.redirectToCart(ctx, "Your payment could not be verified. Please try again.")
		case checkout.ErrMissingContactEmail:
			return api.redirectToCart(ctx, "A contact email is required to complete your purchase.")
		case checkout.ErrAccountExists:
			return api.redirectToCart(ctx, "An account with this email already exists. Log in to complete your purchase.")
		case cart.ErrEmptyCart, cart.ErrNotFound:
			return api.redirectToCart(ctx, "Your cart is empty.")
		}
		api.logger.Error(fmt.Sprintf("completing checkout %s: %v", paymentRef, err), err)
		return api.redirectToCart(ctx, "Something went wrong completing your purchase. Please contact support.")
	}

	return ctx.JSON(http.StatusOK, receipt)
}

func (api *checkoutApi) redirectToCart(ctx echo.Context, message string) error {
	q := url.Values{"message": {message}}
	return ctx.Redirect(http.StatusSeeOther, api.conf.FrontendBaseURL+"/cart?"+q.Encode())
}

// webhook receives payment gateway events. Bad payloads and signatures are
// rejected with 400; events we do not handle are acked so the gateway stops
// retrying them.
func (api *checkoutApi) webhook(ctx echo.Context) error {
	req := ctx.Request()
	req.Body = http.MaxBytesReader(ctx.Response(), req.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading payload failed")
	}

	event, err := api.payments.VerifyWebhook(payload, req.Header.Get("Stripe-Signature"))
	if err != nil {
		api.logger.Warn(fmt.Sprintf("webhook signature verification failed: %v", err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook")
	}

	switch event.Type {
	case core.PaymentEventSucceeded:
		err = api.enrollSvc.OnPaymentSucceeded(req.Context(), event.Intent)
	case core.PaymentEventFailed:
		err = api.enrollSvc.OnPaymentFailed(req.Context(), event.Intent)
	default:
		api.logger.Info(fmt.Sprintf("unhandled webhook event type: %s", event.Type))
	}
	if err != nil {
		return errors.Wrapf(err, "handling %s", event.Type)
	}

	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "received"})
}
