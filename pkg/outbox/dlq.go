package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
)

// DLQRepository persists events that exhausted their publish attempts.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&entry).Error
}
