package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book represents a catalog entry.
type Book struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Title       string          `json:"title" gorm:"type:varchar(255);not null" validate:"required,min=1,max=255"`
	Author      string          `json:"author" gorm:"type:varchar(255)" validate:"omitempty,max=255"`
	Category    string          `json:"category" gorm:"type:varchar(100);index" validate:"omitempty,max=100"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(15,2);not null"`
	Stock       int             `json:"stock" gorm:"not null" validate:"gte=0"`
	Image       string          `json:"image" validate:"omitempty,max=500"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
