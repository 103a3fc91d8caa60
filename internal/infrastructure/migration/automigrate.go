package migration

import (
	"checkoutgo/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.CheckoutModel{},
	}
}
