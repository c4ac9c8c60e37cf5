package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is this service's view of a catalog row. Only StockCount is ever
// written here, and only through the inventory ledger.
type Product struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	StockCount int             `gorm:"not null;default:0;check:stock_count >= 0" json:"stock_count"`
	IsActive   bool            `gorm:"not null;default:true" json:"is_active"`
	ImageURL   string          `gorm:"type:varchar(1024)" json:"image_url"`
}

// Address belongs to the identity service; orders reference it by id.
type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	FullName   string    `gorm:"type:varchar(255)" json:"full_name"`
	Line1      string    `gorm:"type:varchar(255)" json:"line1"`
	Line2      string    `gorm:"type:varchar(255)" json:"line2"`
	City       string    `gorm:"type:varchar(100)" json:"city"`
	State      string    `gorm:"type:varchar(100)" json:"state"`
	PostalCode string    `gorm:"type:varchar(20)" json:"postal_code"`
	Country    string    `gorm:"type:varchar(100)" json:"country"`
	Phone      string    `gorm:"type:varchar(30)" json:"phone"`
}
