package seeders

import (
	"context"
	"errors"
	"fmt"

	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

type departmentSeed struct {
	code        string
	name        string
	description string
}

var defaultDepartments = []departmentSeed{
	{code: "SALES", name: "Sales", description: "Customer facing order intake"},
	{code: "OPS", name: "Operations", description: "Fulfilment and logistics"},
	{code: "FIN", name: "Finance", description: "Billing and payment review"},
	{code: "LEGAL", name: "Legal", description: "Contract review"},
}

// SeedDirectory creates the system user and the default departments. It is
// idempotent: existing rows are left untouched.
func SeedDirectory(ctx context.Context, store *repository.Store, log *logrus.Logger) error {
	system := models.AppUser{
		ID:          models.SystemActorID,
		Username:    "system",
		DisplayName: "System",
		IsActive:    true,
	}
	result := store.DB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&system)
	if result.Error != nil {
		return fmt.Errorf("failed to seed system user: %w", result.Error)
	}

	for _, seed := range defaultDepartments {
		_, err := store.Directory.FindDepartmentByCode(ctx, seed.code)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up department %s: %w", seed.code, err)
		}

		code, description := seed.code, seed.description
		department := &models.Department{
			Name:        seed.name,
			Code:        &code,
			Description: &description,
			IsActive:    true,
		}
		if err := store.Directory.CreateDepartment(ctx, department); err != nil {
			return fmt.Errorf("failed to seed department %s: %w", seed.code, err)
		}
		log.WithFields(logrus.Fields{
			"department_id": department.ID,
			"code":          seed.code,
		}).Info("Seeded department")
	}

	return nil
}
