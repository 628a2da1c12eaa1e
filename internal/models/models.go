package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated principal a session carries.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

type Category struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type Product struct {
	ID               int64           `json:"id"`
	Slug             string          `json:"slug"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	ShortDescription string          `json:"short_description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Images           []string        `json:"images"`
	Rating           float64         `json:"rating"`
	CategoryID       int64           `json:"category_id,omitempty"`
	Category         string          `json:"category,omitempty"`
	Featured         bool            `json:"featured"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Summary returns the long description, falling back to the short one.
func (p Product) Summary() string {
	if p.Description != "" {
		return p.Description
	}
	return p.ShortDescription
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductPatch is a partial product update. Nil fields are left as
// they are; a CategoryID of 0 clears the category.
type ProductPatch struct {
	Slug             *string          `json:"slug"`
	Name             *string          `json:"name"`
	Description      *string          `json:"description"`
	ShortDescription *string          `json:"short_description"`
	Price            *decimal.Decimal `json:"price"`
	Stock            *int             `json:"stock"`
	Images           *[]string        `json:"images"`
	Rating           *float64         `json:"rating"`
	CategoryID       *int64           `json:"category_id"`
	Featured         *bool            `json:"featured"`
}

// Apply copies the set fields of the patch onto product.
func (p ProductPatch) Apply(product *Product) {
	if p.Slug != nil {
		product.Slug = *p.Slug
	}
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.ShortDescription != nil {
		product.ShortDescription = *p.ShortDescription
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Images != nil {
		product.Images = append([]string{}, (*p.Images)...)
	}
	if p.Rating != nil {
		product.Rating = *p.Rating
	}
	if p.CategoryID != nil {
		product.CategoryID = *p.CategoryID
	}
	if p.Featured != nil {
		product.Featured = *p.Featured
	}
}

// CartLine is one product in an owner's cart. Product carries live
// catalog data; the line price is always Product.Price.
type CartLine struct {
	ID        int64     `json:"id,omitempty"`
	OwnerID   uuid.UUID `json:"owner_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   Product   `json:"product"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type WishlistEntry struct {
	ID        int64     `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	ProductID int64     `json:"product_id"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

// ShippingAddress is stored as a JSON document on the order row.
type ShippingAddress struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
	Country  string `json:"country"`
}

func (a ShippingAddress) Value() (driver.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	return data, nil
}

func (a *ShippingAddress) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = ShippingAddress{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan shipping address: unsupported type %T", src)
	}
	return json.Unmarshal(data, a)
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []OrderLine     `json:"items,omitempty"`
}

// OrderLine records the price paid at checkout, independent of later
// catalog changes. Product is joined for display only.
type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   Product         `json:"product"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)
