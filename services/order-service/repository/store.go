package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStockExhausted is returned by TryReserve when stock is short.
	ErrStockExhausted = errors.New("insufficient stock")
)

const pgUniqueViolation = "23505"

// Store groups the repositories over one connection or transaction.
// WithinTransaction on a Store that is already transactional opens a
// savepoint, so a failure inside fn rolls back only fn's writes.
type Store interface {
	Carts() CartRepository
	Catalog() CatalogRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Carts() CartRepository { return NewGormCartRepository(s.db) }
func (s *GormStore) Catalog() CatalogRepository { return NewGormCatalogRepository(s.db) }
func (s *GormStore) Inventory() InventoryRepository { return NewGormInventoryRepository(s.db) }
func (s *GormStore) Orders() OrderRepository { return NewGormOrderRepository(s.db) }
func (s *GormStore) Payments() PaymentRepository { return NewGormPaymentRepository(s.db) }

// WithinTransaction runs fn in READ COMMITTED. Oversell protection comes from
// row locks plus the conditional decrement, not from the isolation level.
func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
