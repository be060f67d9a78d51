package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store statuses
const (
	StoreStatusPending  = "pending"
	StoreStatusApproved = "approved"
	StoreStatusRejected = "rejected"
)

// PaymentMethodCOD is the only payment method accepted at checkout.
const PaymentMethodCOD = "COD"

// User is an identity synced from the identity provider. Cart is the durable cart
// mirror; checkout never reads it.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email     string    `gorm:"type:varchar(255);index" json:"email"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Image     string    `gorm:"type:text" json:"image,omitempty"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"isAdmin"`
	Cart      Cart      `gorm:"type:text" json:"cart"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"userId"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Username  string    `gorm:"type:varchar(255);uniqueIndex" json:"username"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	IsActive  bool      `gorm:"not null;default:false" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open reports whether the store may take part in a checkout.
func (s Store) Open() bool {
	return s.Status == StoreStatusApproved && s.IsActive
}

type Category struct {
	ID   string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name string `gorm:"type:varchar(255);uniqueIndex" json:"name"`
}

type Product struct {
	ID         string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoreID    string          `gorm:"type:varchar(64);index;not null" json:"storeId"`
	Store      *Store          `gorm:"foreignKey:StoreID" json:"-"`
	Name       string          `gorm:"type:varchar(255)" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	MRP        decimal.Decimal `gorm:"type:decimal(12,2)" json:"mrp"`
	InStock    bool            `gorm:"not null" json:"inStock"`
	CategoryID string          `gorm:"type:varchar(64);index" json:"category"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type Address struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID      string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	FullAddress string    `gorm:"type:text" json:"fullAddress"`
	Phone       string    `gorm:"type:varchar(32)" json:"phone"`
	City        string    `gorm:"type:varchar(64)" json:"city"`
	Country     string    `gorm:"type:varchar(64)" json:"country"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Snapshot copies the fields of a that an order keeps for display.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Name:        a.Name,
		FullAddress: a.FullAddress,
		Phone:       a.Phone,
		City:        a.City,
		Country:     a.Country,
	}
}

type Coupon struct {
	Code        string          `gorm:"primaryKey;type:varchar(64)" json:"code"`
	Description string          `gorm:"type:text" json:"description"`
	Discount    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount"`
	ForNewUser  bool            `gorm:"not null;default:false" json:"forNewUser"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Snapshot captures the coupon as applied to an order.
func (c Coupon) Snapshot() CouponSnapshot {
	return CouponSnapshot{
		Code:       c.Code,
		Discount:   c.Discount,
		ForNewUser: c.ForNewUser,
		ExpiresAt:  c.ExpiresAt,
	}
}

// Checkout groups the orders created by one checkout attempt.
type Checkout struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_checkout_user_key" json:"userId"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_checkout_user_key" json:"idempotencyKey"`
	RequestHash    string          `gorm:"type:varchar(64)" json:"-"`
	OrderIDs       StringList      `gorm:"type:text" json:"orderIds"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Order struct {
	ID              string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CheckoutID      string          `gorm:"type:varchar(64);index" json:"checkoutId"`
	UserID          string          `gorm:"type:varchar(64);index;not null" json:"userId"`
	StoreID         string          `gorm:"type:varchar(64);index;not null" json:"storeId"`
	AddressID       *string         `gorm:"type:varchar(64);index" json:"addressId"`
	Address         *Address        `gorm:"foreignKey:AddressID" json:"address,omitempty"`
	ShippingAddress AddressSnapshot `gorm:"type:text" json:"shippingAddress"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	ShippingFee     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shippingFee"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	PaymentMethod   string          `gorm:"type:varchar(16);not null" json:"paymentMethod"`
	IsCouponUsed    bool            `gorm:"not null;default:false" json:"isCouponUsed"`
	Coupon          CouponSnapshot  `gorm:"type:text" json:"coupon"`
	Status          string          `gorm:"type:varchar(20);not null;index" json:"status"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"orderItems"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderItem holds the price paid at checkout; it is never recomputed from Product.
type OrderItem struct {
	OrderID     string          `gorm:"primaryKey;type:varchar(64)" json:"orderId"`
	ProductID   string          `gorm:"primaryKey;type:varchar(64)" json:"productId"`
	ProductName string          `gorm:"type:varchar(255)" json:"productName"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
}

type Rating struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	ProductID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_rating_product_order" json:"productId"`
	OrderID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_rating_product_order" json:"orderId"`
	Rating    int       `gorm:"not null" json:"rating"`
	Review    string    `gorm:"type:text" json:"review"`
	CreatedAt time.Time `json:"createdAt"`
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Store{},
		&Category{},
		&Product{},
		&Address{},
		&Coupon{},
		&Checkout{},
		&Order{},
		&OrderItem{},
		&Rating{},
	}
}
