// Package testutil provides an isolated in-memory database for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewStore opens a fresh in-memory SQLite database, migrates it and returns
// a Store over it. Each call gets its own database.
func NewStore(t *testing.T) *repository.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writers the way a row lock would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewStore(db)
	require.NoError(t, store.Migrate())
	return store
}

// Fixture holds the directory rows most tests need
type Fixture struct {
	Owner      models.AppUser
	Other      models.AppUser
	Third      models.AppUser
	Sales      models.Department
	Legal      models.Department
	Operations models.Department
}

// Seed inserts three users and three departments
func Seed(t *testing.T, store *repository.Store) Fixture {
	t.Helper()
	ctx := t.Context()

	f := Fixture{
		Owner:      models.AppUser{Username: "owner", DisplayName: "Order Owner", IsActive: true},
		Other:      models.AppUser{Username: "colleague", DisplayName: "Colleague", IsActive: true},
		Third:      models.AppUser{Username: "auditor", DisplayName: "Auditor", IsActive: true},
		Sales:      models.Department{Name: "Sales", IsActive: true},
		Legal:      models.Department{Name: "Legal", IsActive: true},
		Operations: models.Department{Name: "Operations", IsActive: true},
	}
	for _, u := range []*models.AppUser{&f.Owner, &f.Other, &f.Third} {
		require.NoError(t, store.Directory.CreateUser(ctx, u))
	}
	for _, d := range []*models.Department{&f.Sales, &f.Legal, &f.Operations} {
		require.NoError(t, store.Directory.CreateDepartment(ctx, d))
	}
	return f
}

// NewOrder inserts an active order owned by ownerID in departmentID
func NewOrder(t *testing.T, store *repository.Store, ownerID, departmentID uuid.UUID, reference string) *models.Order {
	t.Helper()

	order := &models.Order{
		ReferenceNumber: reference,
		Type:            models.OrderTypeIncoming,
		DepartmentID:    departmentID,
		Title:           "Order " + reference,
		Description:     "Description of " + reference,
		Status:          models.OrderStatusPending,
		Priority:        models.PriorityNormal,
		OwnerID:         ownerID,
		CreatedBy:       ownerID,
	}
	require.NoError(t, store.Orders.Create(t.Context(), order))
	return order
}
