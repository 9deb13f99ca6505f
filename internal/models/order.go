package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderPaid       OrderStatus = "Paid"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
	OrderFailed     OrderStatus = "Failed"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderFailed:
		return true
	}
	return false
}

// OrderItem is a line item with title, price and image snapshotted at checkout.
type OrderItem struct {
	ID       uint            `json:"-" gorm:"primaryKey"`
	OrderID  string          `json:"-" gorm:"type:varchar(36);index;not null"`
	BookID   string          `json:"book_id" gorm:"type:varchar(36);not null"`
	Title    string          `json:"title" gorm:"type:varchar(255);not null"`
	Price    decimal.Decimal `json:"price" gorm:"type:decimal(15,2);not null"`
	Quantity int             `json:"quantity" gorm:"not null"`
	Image    string          `json:"image"`
}

// Order represents a customer order.
type Order struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerID *string         `json:"customer_id,omitempty" gorm:"type:varchar(36);index"` // nil for guest orders
	Fullname   string          `json:"fullname" gorm:"type:varchar(255);not null"`
	Phone      string          `json:"phone" gorm:"type:varchar(32);not null"`
	Address    string          `json:"address" gorm:"type:varchar(500);not null"`
	Note       string          `json:"note"`
	Items      []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Total      decimal.Decimal `json:"total" gorm:"type:decimal(15,2);not null"`
	Status     OrderStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	// StockDecreased flips false->true at most once and guards the inventory decrement.
	StockDecreased bool      `json:"stock_decreased" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
