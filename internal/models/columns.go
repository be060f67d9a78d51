package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Cart maps product id to quantity.
type Cart map[string]int

// AddressSnapshot is the shipping address as it was when the order was placed.
type AddressSnapshot struct {
	Name        string `json:"name"`
	FullAddress string `json:"fullAddress"`
	Phone       string `json:"phone"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// CouponSnapshot is the coupon as applied to an order. Empty when no coupon was used.
type CouponSnapshot struct {
	Code       string          `json:"code,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
	ForNewUser bool            `json:"forNewUser,omitempty"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
}

// StringList is stored as a JSON array.
type StringList []string

func (c Cart) Value() (driver.Value, error) {
	if c == nil {
		c = Cart{}
	}
	return jsonValue(c)
}

func (c *Cart) Scan(src interface{}) error { return jsonScan(src, c) }

func (a AddressSnapshot) Value() (driver.Value, error) { return jsonValue(a) }

func (a *AddressSnapshot) Scan(src interface{}) error { return jsonScan(src, a) }

func (c CouponSnapshot) Value() (driver.Value, error) { return jsonValue(c) }

func (c *CouponSnapshot) Scan(src interface{}) error { return jsonScan(src, c) }

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return jsonValue(l)
}

func (l *StringList) Scan(src interface{}) error { return jsonScan(src, l) }

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src interface{}, dst interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
