package repositories

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	Users() UserRepository
	// WithTx runs fn against a transactional Store. Any error rolls back every
	// write made through that Store. Calls must not be nested.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// GORMStore is the database-backed Store.
type GORMStore struct {
	db       *gorm.DB
	products *GORMProductRepository
	orders   *GORMOrderRepository
	users    *GORMUserRepository
}

// NewGORMStore wires the GORM repositories around db.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{
		db:       db,
		products: NewGORMProductRepository(db),
		orders:   NewGORMOrderRepository(db),
		users:    NewGORMUserRepository(db),
	}
}

func (s *GORMStore) Products() ProductRepository { return s.products }
func (s *GORMStore) Orders() OrderRepository     { return s.orders }
func (s *GORMStore) Users() UserRepository       { return s.users }

// WithTx runs fn inside a database transaction.
func (s *GORMStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMStore(tx))
	})
}

// MockStore is the in-memory Store. Transactions are serialized and roll back
// by restoring a snapshot taken when the transaction began.
type MockStore struct {
	products *MockProductRepository
	orders   *MockOrderRepository
	users    *MockUserRepository
	txMu     sync.Mutex
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		products: NewMockProductRepository(),
		orders:   NewMockOrderRepository(),
		users:    NewMockUserRepository(),
	}
}

func (s *MockStore) Products() ProductRepository { return s.products }
func (s *MockStore) Orders() OrderRepository     { return s.orders }
func (s *MockStore) Users() UserRepository       { return s.users }

// WithTx runs fn while holding the store-wide transaction lock.
func (s *MockStore) WithTx(ctx context.Context, fn func(tx Store) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	products := s.products.snapshot()
	orders := s.orders.snapshot()
	users := s.users.snapshot()

	defer func() {
		if r := recover(); r != nil {
			s.products.restore(products)
			s.orders.restore(orders)
			s.users.restore(users)
			panic(r)
		}
		if err != nil {
			s.products.restore(products)
			s.orders.restore(orders)
			s.users.restore(users)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}
