package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
)

type cartRow struct {
	ID         string      `db:"id"`
	UserID     null.String `db:"user_id"`
	SessionKey null.String `db:"session_key"`
	CreatedAt  null.Time   `db:"created_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

// cartItemRow joins cart_item with the referenced course/session so reads
// carry the current title and price.
type cartItemRow struct {
	ID         string      `db:"id"`
	CartID     string      `db:"cart_id"`
	Kind       string      `db:"kind"`
	CourseID   null.String `db:"course_id"`
	SessionID  null.String `db:"session_id"`
	Title      null.String `db:"title"`
	PriceCents null.Int64  `db:"price_cents"`
	AddedAt    null.Time   `db:"added_at"`
}

const cartItemsQuery = `
	SELECT ci.id, ci.cart_id, ci.kind, ci.course_id, ci.session_id, ci.added_at,
	       COALESCE(c.title, s.title) AS title,
	       COALESCE(c.price_cents, s.price_cents) AS price_cents
	FROM cart_item ci
	LEFT JOIN course c ON c.id = ci.course_id
	LEFT JOIN session s ON s.id = ci.session_id
	WHERE ci.cart_id = $1
	ORDER BY ci.added_at`

type cartRepository struct {
	exec core.DBExecutor
}

var _ cart.Repository = (*cartRepository)(nil) // interface compliance check

func NewCartRepository(exec core.DBExecutor) *cartRepository {
	return &cartRepository{exec: exec}
}

func (repo cartRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo cartRepository) unrow(row cartRow, items []cart.Item) cart.Cart {
	return cart.Cart{
		ID:         row.ID,
		UserID:     row.UserID.String,
		SessionKey: row.SessionKey.String,
		Items:      items,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

func (repo cartRepository) unrowItem(row cartItemRow) cart.Item {
	return cart.Item{
		ID:         row.ID,
		CartID:     row.CartID,
		Kind:       row.Kind,
		CourseID:   row.CourseID.String,
		SessionID:  row.SessionID.String,
		Title:      row.Title.String,
		PriceCents: row.PriceCents.Int64,
		AddedAt:    row.AddedAt.Time,
	}
}

// trapUniqueErr maps psql unique violations to cart.ErrDuplicateItem
func (repo cartRepository) trapUniqueErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return cart.ErrDuplicateItem
	}
	return errors.Wrap(err, msg)
}

func (repo cartRepository) loadItems(ctx context.Context, exe core.DBExecutor, cartID string) ([]cart.Item, error) {
	var rows []cartItemRow
	if err := exe.SelectContext(ctx, &rows, cartItemsQuery, cartID); err != nil {
		return nil, errors.Wrap(err, "querying cart items")
	}
	items := make([]cart.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, repo.unrowItem(row))
	}
	return items, nil
}

func (repo cartRepository) load(ctx context.Context, exe core.DBExecutor, row cartRow) (cart.Cart, error) {
	items, err := repo.loadItems(ctx, exe, row.ID)
	if err != nil {
		return cart.Cart{}, err
	}
	return repo.unrow(row, items), nil
}

func (repo cartRepository) getOrCreate(ctx context.Context, exe core.DBExecutor, field, value string) (cart.Cart, error) {
	var row cartRow
	err := exe.GetContext(ctx, &row, `SELECT * FROM cart WHERE `+field+` = $1`, value)
	if err == nil {
		return repo.load(ctx, exe, row)
	}
	if err != sql.ErrNoRows {
		return cart.Cart{}, errors.Wrap(err, "finding cart")
	}

	now := time.Now().UTC()
	row = cartRow{
		ID:        uuid.New().String(),
		CreatedAt: null.TimeFrom(now),
		UpdatedAt: null.TimeFrom(now),
	}
	if field == "user_id" {
		row.UserID = null.StringFrom(value)
	} else {
		row.SessionKey = null.StringFrom(value)
	}
	if _, err = exe.ExecContext(ctx,
		`INSERT INTO cart (id, user_id, session_key, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		row.ID, row.UserID, row.SessionKey, row.CreatedAt, row.UpdatedAt,
	); err != nil {
		return cart.Cart{}, errors.Wrap(err, "inserting cart")
	}
	return repo.unrow(row, []cart.Item{}), nil
}

func (repo cartRepository) GetOrCreateCartForUser(ctx context.Context, userID string, exec ...core.DBExecutor) (cart.Cart, error) {
	return repo.getOrCreate(ctx, repo.getExec(exec), "user_id", userID)
}

func (repo cartRepository) GetOrCreateCartForSessionKey(ctx context.Context, sessionKey string, exec ...core.DBExecutor) (cart.Cart, error) {
	return repo.getOrCreate(ctx, repo.getExec(exec), "session_key", sessionKey)
}

func (repo cartRepository) GetCart(ctx context.Context, id string, exec ...core.DBExecutor) (cart.Cart, error) {
	exe := repo.getExec(exec)
	var row cartRow
	if err := exe.GetContext(ctx, &row, `SELECT * FROM cart WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return cart.Cart{}, cart.ErrNotFound
		}
		return cart.Cart{}, errors.Wrap(err, "finding cart by ID")
	}
	return repo.load(ctx, exe, row)
}

func (repo cartRepository) AddItem(ctx context.Context, item cart.Item, exec ...core.DBExecutor) (cart.Item, error) {
	item.ID = uuid.New().String()
	item.AddedAt = time.Now().UTC()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO cart_item (id, cart_id, kind, course_id, session_id, added_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.CartID, item.Kind,
		null.NewString(item.CourseID, item.CourseID != ""),
		null.NewString(item.SessionID, item.SessionID != ""),
		item.AddedAt,
	)
	if err != nil {
		return cart.Item{}, repo.trapUniqueErr(err, "inserting cart item")
	}
	return item, nil
}

func (repo cartRepository) DeleteItem(ctx context.Context, cartID, itemID string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`DELETE FROM cart_item WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return errors.Wrap(err, "deleting cart item")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (repo cartRepository) ClearCart(ctx context.Context, cartID string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx,
		`DELETE FROM cart_item WHERE cart_id = $1`, cartID); err != nil {
		return errors.Wrap(err, "clearing cart")
	}
	return nil
}

func (repo cartRepository) AssignCartToUser(ctx context.Context, cartID, userID string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	// a user holds at most one cart; drop any they already had
	if _, err := exe.ExecContext(ctx,
		`DELETE FROM cart WHERE user_id = $1 AND id <> $2`, userID, cartID); err != nil {
		return errors.Wrap(err, "dropping previous cart")
	}

	res, err := exe.ExecContext(ctx,
		`UPDATE cart SET user_id = $2, session_key = NULL, updated_at = $3 WHERE id = $1`,
		cartID, userID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "assigning cart to user")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return cart.ErrNotFound
	}
	return nil
}
