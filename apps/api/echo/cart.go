package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/user"
)

type cartApi struct {
	svc      *cart.Service
	userSvc  *user.Service
	payments core.PaymentService
}

func registerCartAPI(
	g *echo.Group,
	svc *cart.Service,
	userSvc *user.Service,
	payments core.PaymentService,
) {
	api := cartApi{
		svc:      svc,
		userSvc:  userSvc,
		payments: payments,
	}

	// auth is optional: anonymous shoppers are keyed by the cart session header
	cg := g.Group("/cart", optionalAuthMiddleware())
	cg.GET("", api.retrieve)
	cg.POST("/courses/:id", api.addCourse)
	cg.POST("/sessions/:id", api.addSession)
	cg.DELETE("/items/:id", api.removeItem)
	cg.POST("/payment-intent", api.createPaymentIntent)
}

// resolveCart returns the requester's cart: the authenticated user's, or the
// anonymous cart bound to the cart session header.
func (api *cartApi) resolveCart(ctx echo.Context) (cart.Cart, error) {
	if usr, err := getContextUser(ctx, api.userSvc); err == nil {
		return api.svc.ResolveForUser(ctx.Request().Context(), usr.ID)
	}
	if key := ctx.Request().Header.Get(cartSessionHeader); key != "" {
		return api.svc.ResolveForSessionKey(ctx.Request().Context(), key)
	}
	return cart.Cart{}, errMissingCartSession
}

// Handlers

func (api *cartApi) retrieve(ctx echo.Context) error {
	crt, err := api.resolveCart(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CartResponse{Cart: crt, TotalCents: crt.TotalCents()})
}

func (api *cartApi) addCourse(ctx echo.Context) error {
	crt, err := api.resolveCart(ctx)
	if err != nil {
		return err
	}

	crt, err = api.svc.AddCourse(ctx.Request().Context(), crt, ctx.Param("id"))
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrNotFound:
			return errHttpNotFound
		case cart.ErrDuplicateItem:
			return core.NewValidationError(cart.ErrDuplicateItem)
		}
		return errors.Wrap(err, "adding course to cart")
	}
	return ctx.JSON(http.StatusOK, CartResponse{Cart: crt, TotalCents: crt.TotalCents()})
}

func (api *cartApi) addSession(ctx echo.Context) error {
	crt, err := api.resolveCart(ctx)
	if err != nil {
		return err
	}

	crt, err = api.svc.AddSession(ctx.Request().Context(), crt, ctx.Param("id"))
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrSessionNotFound:
			return errHttpNotFound
		case cart.ErrDuplicateItem:
			return core.NewValidationError(cart.ErrDuplicateItem)
		}
		return errors.Wrap(err, "adding session to cart")
	}
	return ctx.JSON(http.StatusOK, CartResponse{Cart: crt, TotalCents: crt.TotalCents()})
}

func (api *cartApi) removeItem(ctx echo.Context) error {
	crt, err := api.resolveCart(ctx)
	if err != nil {
		return err
	}

	crt, err = api.svc.Remove(ctx.Request().Context(), crt, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == cart.ErrItemNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "removing cart item")
	}
	return ctx.JSON(http.StatusOK, CartResponse{Cart: crt, TotalCents: crt.TotalCents()})
}

// createPaymentIntent opens a payment for the whole cart. Guests supply a
// receipt email so checkout can provision their account afterwards.
func (api *cartApi) createPaymentIntent(ctx echo.Context) error {
	crt, err := api.resolveCart(ctx)
	if err != nil {
		return err
	}
	if crt.IsEmpty() {
		return core.NewValidationError(cart.ErrEmptyCart)
	}

	var data PaymentIntentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentIntentRequest")
	}

	metadata := map[string]string{"cart_id": crt.ID}
	receiptEmail := core.CleanString(data.ReceiptEmail, true /* lower */)
	if usr, err := getContextUser(ctx, api.userSvc); err == nil {
		metadata["checkout_user_id"] = usr.ID
		if receiptEmail == "" {
			receiptEmail = usr.Email
		}
	} else {
		metadata["session_key"] = crt.SessionKey
	}

	intent, err := api.payments.CreateIntent(ctx.Request().Context(), crt.TotalCents(), "usd", receiptEmail, metadata)
	if err != nil {
		return errors.Wrap(err, "creating payment intent")
	}
	return ctx.JSON(http.StatusCreated, PaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     intent.AmountCents,
	})
}

type (
	CartResponse struct {
		cart.Cart
		TotalCents int64 `json:"total_cents"`
	}

	PaymentIntentRequest struct {
		ReceiptEmail string `json:"receipt_email"`
	}

	PaymentIntentResponse struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
		AmountCents     int64  `json:"amount_cents"`
	}
)
