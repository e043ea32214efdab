package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
)

type cartRepository struct {
	db *DB
}

var _ cart.Repository = (*cartRepository)(nil) // interface compliance check

func NewCartRepository(db *DB) *cartRepository {
	return &cartRepository{db: db}
}

// load resolves the cart's items along with the current title and price of
// each referenced course/session.
func (repo *cartRepository) load(crt cart.Cart) cart.Cart {
	items := make([]cart.Item, 0)
	for _, item := range repo.db.cartItems {
		if item.CartID != crt.ID {
			continue
		}
		it := *item
		switch it.Kind {
		case cart.KindCourse:
			if crs, ok := repo.db.courses[it.CourseID]; ok {
				it.Title = crs.Title
				it.PriceCents = crs.PriceCents
			}
		case cart.KindSession:
			if sess, ok := repo.db.sessions[it.SessionID]; ok {
				it.Title = sess.Title
				it.PriceCents = sess.PriceCents
			}
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AddedAt.Before(items[j].AddedAt) })
	crt.Items = items
	return crt
}

func (repo *cartRepository) GetOrCreateCartForUser(ctx context.Context, userID string, exec ...core.DBExecutor) (cart.Cart, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, crt := range repo.db.carts {
		if crt.UserID == userID {
			return repo.load(*crt), nil
		}
	}

	now := time.Now().UTC()
	crt := cart.Cart{ID: uuid.New().String(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	repo.db.carts[crt.ID] = &crt
	return repo.load(crt), nil
}

func (repo *cartRepository) GetOrCreateCartForSessionKey(ctx context.Context, sessionKey string, exec ...core.DBExecutor) (cart.Cart, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, crt := range repo.db.carts {
		if crt.SessionKey == sessionKey {
			return repo.load(*crt), nil
		}
	}

	now := time.Now().UTC()
	crt := cart.Cart{ID: uuid.New().String(), SessionKey: sessionKey, CreatedAt: now, UpdatedAt: now}
	repo.db.carts[crt.ID] = &crt
	return repo.load(crt), nil
}

func (repo *cartRepository) GetCart(ctx context.Context, id string, exec ...core.DBExecutor) (cart.Cart, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crt, ok := repo.db.carts[id]; ok {
		return repo.load(*crt), nil
	}
	return cart.Cart{}, cart.ErrNotFound
}

func (repo *cartRepository) AddItem(ctx context.Context, item cart.Item, exec ...core.DBExecutor) (cart.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.carts[item.CartID]; !ok {
		return cart.Item{}, cart.ErrNotFound
	}
	for _, it := range repo.db.cartItems {
		if it.CartID != item.CartID {
			continue
		}
		if (item.CourseID != "" && it.CourseID == item.CourseID) ||
			(item.SessionID != "" && it.SessionID == item.SessionID) {
			return cart.Item{}, cart.ErrDuplicateItem
		}
	}

	item.ID = uuid.New().String()
	item.AddedAt = time.Now().UTC()
	repo.db.cartItems[item.ID] = &item
	return item, nil
}

func (repo *cartRepository) DeleteItem(ctx context.Context, cartID, itemID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if item, ok := repo.db.cartItems[itemID]; ok && item.CartID == cartID {
		delete(repo.db.cartItems, itemID)
		return nil
	}
	return cart.ErrItemNotFound
}

func (repo *cartRepository) ClearCart(ctx context.Context, cartID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, item := range repo.db.cartItems {
		if item.CartID == cartID {
			delete(repo.db.cartItems, id)
		}
	}
	return nil
}

func (repo *cartRepository) AssignCartToUser(ctx context.Context, cartID, userID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crt, ok := repo.db.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}

	// a user holds at most one cart; drop any they already had
	for id, c := range repo.db.carts {
		if c.UserID == userID && id != cartID {
			for itemID, item := range repo.db.cartItems {
				if item.CartID == id {
					delete(repo.db.cartItems, itemID)
				}
			}
			delete(repo.db.carts, id)
		}
	}

	crt.UserID = userID
	crt.SessionKey = ""
	crt.UpdatedAt = time.Now().UTC()
	return nil
}
