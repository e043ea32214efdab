package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/cart"
	"github.com/trezcool/soko/core/course"
	"github.com/trezcool/soko/core/enroll"
	"github.com/trezcool/soko/core/user"
)

var errNotSupported = errors.New("raw SQL is not supported by the in-memory database")

// sqlStub satisfies core.DBExecutor for stores that never touch SQL.
type sqlStub struct{}

func (sqlStub) DriverName() string     { return "inmem" }
func (sqlStub) Rebind(q string) string { return q }
func (sqlStub) BindNamed(q string, arg interface{}) (string, []interface{}, error) {
	return q, nil, nil
}
func (sqlStub) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errNotSupported
}
func (sqlStub) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return nil, errNotSupported
}
func (sqlStub) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return nil
}
func (sqlStub) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errNotSupported
}
func (sqlStub) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errNotSupported
}
func (sqlStub) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errNotSupported
}

// DB is an in-memory store backing the test repositories. Transactions are
// no-ops: repository writes apply immediately.
type DB struct {
	sqlStub
	mu sync.RWMutex

	users              map[string]*user.User
	courses            map[string]*course.Course
	sessions           map[string]*course.Session
	carts              map[string]*cart.Cart
	cartItems          map[string]*cart.Item
	enrollments        map[string]*enroll.Enrollment
	sessionEnrollments map[string]*enroll.SessionEnrollment
	progress           map[string]*enroll.CourseProgress
}

var _ core.DB = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		users:              make(map[string]*user.User),
		courses:            make(map[string]*course.Course),
		sessions:           make(map[string]*course.Session),
		carts:              make(map[string]*cart.Cart),
		cartItems:          make(map[string]*cart.Item),
		enrollments:        make(map[string]*enroll.Enrollment),
		sessionEnrollments: make(map[string]*enroll.SessionEnrollment),
		progress:           make(map[string]*enroll.CourseProgress),
	}
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{}, nil
}

func (db *DB) Ping() error  { return nil }
func (db *DB) Close() error { return nil }

type noopTx struct {
	sqlStub
}

var _ core.DBTransactor = (*noopTx)(nil)

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
