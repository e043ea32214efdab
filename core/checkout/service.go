package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
)

var (
	// errors
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrPaymentVerificationFailed = errors.New("payment could not be verified")
	ErrMissingContactEmail       = errors.New("a contact email is required to complete checkout")
	ErrAccountExists             = errors.New("an account with this email already exists")

	// mockable
	NowFunc = time.Now

	maxUsernameRetries = 5
)

type (
	// Identity is the shopper completing checkout: an authenticated user or an
	// anonymous browser session key.
	Identity struct {
		User       *user.User
		SessionKey string
	}

	Receipt struct {
		PaymentIntentID    string                     `json:"payment_intent_id"`
		Timestamp          time.Time                  `json:"timestamp"`
		User               user.User                  `json:"user"`
		Enrollments        []enroll.Enrollment        `json:"enrollments"`
		SessionEnrollments []enroll.SessionEnrollment `json:"session_enrollments"`
		TotalCents         int64                      `json:"total_cents"`
	}

	// WelcomeMailer greets accounts provisioned during guest checkout.
	WelcomeMailer interface {
		SendWelcomeEmail(ctx context.Context, usr user.User)
	}

	// EnrollmentNotifier dispatches post-purchase notifications.
	EnrollmentNotifier interface {
		NotifyEnrollment(ctx context.Context, enr enroll.Enrollment)
		NotifySessionEnrollment(ctx context.Context, se enroll.SessionEnrollment)
	}

	Service struct {
		db       core.DB
		payments core.PaymentService
		users    user.Repository
		carts    cart.Repository
		enrolls  enroll.Repository
		welcome  WelcomeMailer
		notifier EnrollmentNotifier
		logger   core.Logger
	}
)

func (i Identity) IsAnonymous() bool { return i.User == nil }

func NewService(
	db core.DB,
	payments core.PaymentService,
	userRepo user.Repository,
	cartRepo cart.Repository,
	enrollRepo enroll.Repository,
	welcome WelcomeMailer,
	notifier EnrollmentNotifier,
	logger core.Logger,
) *Service {
	return &Service{
		db:       db,
		payments: payments,
		users:    userRepo,
		carts:    cartRepo,
		enrolls:  enrollRepo,
		welcome:  welcome,
		notifier: notifier,
		logger:   logger,
	}
}

// Complete finalizes a purchase after the payment provider confirmed the
// intent. It resolves the shopper's cart, provisions an account for guests,
// and materializes all enrollments and clears the cart in one transaction so
// a failure leaves the cart intact for a retry.
func (svc *Service) Complete(ctx context.Context, paymentRef string, identity Identity) (Receipt, error) {
	intent, err := svc.verifyPayment(ctx, paymentRef)
	if err != nil {
		return Receipt{}, err
	}

	crt, err := svc.resolveCart(ctx, identity)
	if err != nil {
		return Receipt{}, err
	}
	if crt.IsEmpty() {
		return Receipt{}, cart.ErrEmptyCart
	}

	usr, err := svc.resolveUser(ctx, identity, crt, intent)
	if err != nil {
		return Receipt{}, err
	}

	receipt, err := svc.materialize(ctx, crt, usr, intent)
	if err != nil {
		return Receipt{}, err
	}

	for _, enr := range receipt.Enrollments {
		svc.notifier.NotifyEnrollment(ctx, enr)
	}
	for _, se := range receipt.SessionEnrollments {
		svc.notifier.NotifySessionEnrollment(ctx, se)
	}
	return receipt, nil
}

func (svc *Service) verifyPayment(ctx context.Context, paymentRef string) (core.PaymentIntent, error) {
	intent, err := svc.payments.RetrieveIntent(ctx, paymentRef)
	if err != nil {
		if errors.Cause(err) == core.ErrPaymentIntentNotFound {
			return core.PaymentIntent{}, ErrPaymentNotFound
		}
		svc.logger.Error(fmt.Sprintf("retrieving payment intent %s: %v", paymentRef, err), err)
		return core.PaymentIntent{}, ErrPaymentVerificationFailed
	}
	if intent.Status != core.PaymentStatusSucceeded {
		return core.PaymentIntent{}, ErrPaymentVerificationFailed
	}
	return intent, nil
}

func (svc *Service) resolveCart(ctx context.Context, identity Identity) (cart.Cart, error) {
	if identity.IsAnonymous() {
		if identity.SessionKey == "" {
			return cart.Cart{}, cart.ErrNotFound
		}
		return svc.carts.GetOrCreateCartForSessionKey(ctx, identity.SessionKey)
	}
	return svc.carts.GetOrCreateCartForUser(ctx, identity.User.ID)
}

func (svc *Service) resolveUser(ctx context.Context, identity Identity, crt cart.Cart, intent core.PaymentIntent) (user.User, error) {
	if !identity.IsAnonymous() {
		return *identity.User, nil
	}
	return svc.provisionGuest(ctx, crt, intent)
}

// provisionGuest creates an account for an anonymous shopper from the payment
// intent's receipt email. The generated username is the email's local part
// plus a timestamp; collisions retry with a random suffix. The placeholder
// password is random and never communicated, so the account can only be
// activated through the password reset link in the welcome email.
func (svc *Service) provisionGuest(ctx context.Context, crt cart.Cart, intent core.PaymentIntent) (user.User, error) {
	email := core.CleanString(intent.ReceiptEmail, true /* lower */)
	if email == "" {
		return user.User{}, ErrMissingContactEmail
	}
	if _, err := svc.users.GetUser(ctx, user.GetFilter{Email: email}); err == nil {
		return user.User{}, ErrAccountExists
	} else if errors.Cause(err) != user.ErrNotFound {
		return user.User{}, errors.Wrap(err, "checking for an existing account")
	}

	now := NowFunc().UTC()
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}
	if len(base) > 15 {
		base = base[:15]
	}
	uname := fmt.Sprintf("%s_%s", base, now.Format("20060102150405"))

	usr := user.User{
		Name:      base,
		Email:     email,
		Roles:     []string{user.RoleStudent},
		CreatedAt: now,
		UpdatedAt: now,
	}
	active := true
	usr.IsActive = &active
	if err := usr.SetPassword(core.RandomString(32)); err != nil {
		return user.User{}, errors.Wrap(err, "setting placeholder password")
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	candidate := uname
	for i := 0; ; i++ {
		err = svc.users.CheckUsernameUniqueness(ctx, candidate, email, nil, tx)
		if err == nil {
			break
		}
		if errors.Cause(err) != user.ErrUserExists || i >= maxUsernameRetries {
			return user.User{}, err
		}
		candidate = fmt.Sprintf("%s_%s", uname, core.RandomString(4))
	}
	usr.Username = candidate

	if usr, err = svc.users.CreateUser(ctx, usr, tx); err != nil {
		return user.User{}, err
	}
	if err = svc.carts.AssignCartToUser(ctx, crt.ID, usr.ID, tx); err != nil {
		return user.User{}, err
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing transaction")
	}

	svc.welcome.SendWelcomeEmail(ctx, usr)
	return usr, nil
}

// materialize turns every cart item into an enrollment and clears the cart,
// all in one transaction. Course items become approved enrollments with a
// zeroed progress tracker; session items become approved session enrollments.
func (svc *Service) materialize(ctx context.Context, crt cart.Cart, usr user.User, intent core.PaymentIntent) (Receipt, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := NowFunc().UTC()
	receipt := Receipt{
		PaymentIntentID: intent.ID,
		Timestamp:       now,
		User:            usr,
	}

	for _, item := range crt.Items {
		switch item.Kind {
		case cart.KindCourse:
			enr, err := svc.enrolls.CreateEnrollment(ctx, enroll.Enrollment{
				StudentID:       usr.ID,
				CourseID:        item.CourseID,
				Status:          enroll.StatusApproved,
				PaymentIntentID: intent.ID,
				EnrolledAt:      now,
				UpdatedAt:       now,
			}, tx)
			if err != nil {
				return Receipt{}, err
			}
			if _, err = svc.enrolls.CreateProgress(ctx, enroll.CourseProgress{
				EnrollmentID: enr.ID,
				UpdatedAt:    now,
			}, tx); err != nil {
				return Receipt{}, err
			}
			receipt.Enrollments = append(receipt.Enrollments, enr)
		case cart.KindSession:
			se, err := svc.enrolls.CreateSessionEnrollment(ctx, enroll.SessionEnrollment{
				StudentID:       usr.ID,
				SessionID:       item.SessionID,
				Status:          enroll.StatusApproved,
				PaymentIntentID: intent.ID,
				EnrolledAt:      now,
			}, tx)
			if err != nil {
				return Receipt{}, err
			}
			receipt.SessionEnrollments = append(receipt.SessionEnrollments, se)
		}
		receipt.TotalCents += item.PriceCents
	}

	if err = svc.carts.ClearCart(ctx, crt.ID, tx); err != nil {
		return Receipt{}, err
	}
	if err = tx.Commit(); err != nil {
		return Receipt{}, errors.Wrap(err, "committing transaction")
	}
	return receipt, nil
}
