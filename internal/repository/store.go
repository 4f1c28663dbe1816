package repository

import (
	"context"
	"errors"

	"order-access-service/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateReference = errors.New("reference number already used by an active order")
)

// Models lists every table owned by the service, in migration order
func Models() []interface{} {
	return []interface{}{
		&models.AppUser{},
		&models.Department{},
		&models.DepartmentUser{},
		&models.Order{},
		&models.OrderAttachment{},
		&models.DirectPermission{},
		&models.DepartmentAccess{},
		&models.UserException{},
		&models.OrderHistory{},
		&models.ArchivedOrder{},
	}
}

// Store groups the repositories that share one database handle. A Store
// obtained inside WithTransaction routes every call through that transaction.
type Store struct {
	db *gorm.DB

	Orders    *OrderRepository
	Grants    *GrantRepository
	History   *HistoryRepository
	Archives  *ArchiveRepository
	Directory *DirectoryRepository
}

// NewStore creates a Store over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Orders:    NewOrderRepository(db),
		Grants:    NewGrantRepository(db),
		History:   NewHistoryRepository(db),
		Archives:  NewArchiveRepository(db),
		Directory: NewDirectoryRepository(db),
	}
}

// DB exposes the underlying handle for health checks and migrations
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTransaction runs fn in a single transaction. Any error returned by fn
// rolls back every write made through the transactional Store.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Migrate creates or updates the schema
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(Models()...)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
