package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type CheckoutModel struct {
	ID          uint   `gorm:"primaryKey"`
	Reference   string `gorm:"uniqueIndex;size:64;not null"`
	Amount      int64  `gorm:"not null"`
	Currency    string `gorm:"size:10;not null;default:'USD'"`
	PaymentType string `gorm:"size:20;not null"`
	Frequency   string `gorm:"size:20"`
	Provider    string `gorm:"size:20;not null;index"`

	Email       string `gorm:"size:255;not null"`
	CallbackURL string `gorm:"type:text"`
	ErrorURL    string `gorm:"type:text"`

	ProviderKeys JSONB `gorm:"type:json"`

	FulfillmentOp   string `gorm:"size:128;not null"`
	FulfillmentArgs JSONB  `gorm:"type:json"`

	ProviderSessionID      *string `gorm:"size:128;index"`
	ProviderSubscriptionID *string `gorm:"size:128;index"`

	Status string `gorm:"size:30;not null;index"`
	// Paid backs the exactly-once claim: it flips 0 to 1 in a single
	// conditional update and never goes back.
	Paid        bool `gorm:"not null;default:false;index"`
	PaidAt      *time.Time
	FulfilledAt *time.Time
	ExpiredAt   time.Time `gorm:"not null;index"`

	Meta JSONB `gorm:"type:json"`

	Version   int `gorm:"default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CheckoutModel) TableName() string {
	return "checkouts"
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}
