package cart

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/course"
)

var (
	// errors
	ErrNotFound      = errors.New("cart not found")
	ErrItemNotFound  = errors.New("cart item not found")
	ErrDuplicateItem = errors.New("item is already in the cart")
	ErrEmptyCart     = errors.New("cart is empty")
)

type (
	Repository interface {
		// GetOrCreateCartForUser returns the user's cart, creating it on first use.
		GetOrCreateCartForUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Cart, error)
		// GetOrCreateCartForSessionKey returns the anonymous cart bound to the
		// browser session key, creating it on first use.
		GetOrCreateCartForSessionKey(ctx context.Context, sessionKey string, exec ...core.DBExecutor) (Cart, error)
		GetCart(ctx context.Context, id string, exec ...core.DBExecutor) (Cart, error)
		AddItem(ctx context.Context, item Item, exec ...core.DBExecutor) (Item, error)
		DeleteItem(ctx context.Context, cartID, itemID string, exec ...core.DBExecutor) error
		ClearCart(ctx context.Context, cartID string, exec ...core.DBExecutor) error
		// AssignCartToUser converts an anonymous cart into userID's cart,
		// replacing any cart the user already had.
		AssignCartToUser(ctx context.Context, cartID, userID string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo    Repository
		courses course.Repository
		logger  core.Logger
	}
)

func NewService(repo Repository, courseRepo course.Repository, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		courses: courseRepo,
		logger:  logger,
	}
}

// ResolveForUser returns the authenticated user's cart, creating it on demand.
func (svc *Service) ResolveForUser(ctx context.Context, userID string) (Cart, error) {
	return svc.repo.GetOrCreateCartForUser(ctx, userID)
}

// ResolveForSessionKey returns the anonymous cart for a browser session key,
// creating it on demand.
func (svc *Service) ResolveForSessionKey(ctx context.Context, sessionKey string) (Cart, error) {
	return svc.repo.GetOrCreateCartForSessionKey(ctx, sessionKey)
}

func (svc *Service) Get(ctx context.Context, id string) (Cart, error) {
	return svc.repo.GetCart(ctx, id)
}

// AddCourse puts a published course in the cart. Adding the same course twice
// fails with ErrDuplicateItem.
func (svc *Service) AddCourse(ctx context.Context, crt Cart, courseID string) (Cart, error) {
	crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: courseID})
	if err != nil {
		return Cart{}, err
	}
	if !crs.IsPublished() {
		return Cart{}, course.ErrNotFound
	}
	if _, err = svc.repo.AddItem(ctx, Item{CartID: crt.ID, Kind: KindCourse, CourseID: crs.ID}); err != nil {
		return Cart{}, err
	}
	return svc.repo.GetCart(ctx, crt.ID)
}

// AddSession puts a course session in the cart. Adding the same session twice
// fails with ErrDuplicateItem.
func (svc *Service) AddSession(ctx context.Context, crt Cart, sessionID string) (Cart, error) {
	sess, err := svc.courses.GetSession(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	if _, err = svc.repo.AddItem(ctx, Item{CartID: crt.ID, Kind: KindSession, SessionID: sess.ID}); err != nil {
		return Cart{}, err
	}
	return svc.repo.GetCart(ctx, crt.ID)
}

func (svc *Service) Remove(ctx context.Context, crt Cart, itemID string) (Cart, error) {
	if err := svc.repo.DeleteItem(ctx, crt.ID, itemID); err != nil {
		return Cart{}, err
	}
	return svc.repo.GetCart(ctx, crt.ID)
}

func (svc *Service) Clear(ctx context.Context, crt Cart) error {
	return svc.repo.ClearCart(ctx, crt.ID)
}

// AssignToUser hands an anonymous cart over to a (possibly freshly
// provisioned) user account.
func (svc *Service) AssignToUser(ctx context.Context, crt Cart, userID string) error {
	return svc.repo.AssignCartToUser(ctx, crt.ID, userID)
}
