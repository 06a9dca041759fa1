package order

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"DecorStore/internal/filedb"
)

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Item is an order line. Title and unit price are copied from the catalog
// when the order is placed.
type Item struct {
	ProductID      string `json:"product_id"`
	Title          string `json:"title"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Items           []Item    `json:"items"`
	TotalCents      int64     `json:"total_cents"`
	Status          Status    `json:"status"`
	ShippingAddress string    `json:"shipping_address"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type cartMapper struct{}

func (cartMapper) Columns() []string { return []string{"user_id", "items", "updated_at"} }

func (cartMapper) ToRecord(c Cart) filedb.Record {
	return filedb.Record{
		filedb.IDField: c.ID,
		"user_id":      c.UserID,
		"items":        encodeJSON(c.Items),
		"updated_at":   filedb.FormatTime(c.UpdatedAt),
	}
}

func (cartMapper) FromRecord(r filedb.Record) (Cart, error) {
	c := Cart{ID: r.ID(), UserID: r["user_id"], Items: []CartItem{}}
	if err := decodeJSON(r["items"], &c.Items); err != nil {
		return Cart{}, fmt.Errorf("items: %w", err)
	}
	var err error
	if c.UpdatedAt, err = filedb.ParseTime(r["updated_at"]); err != nil {
		return Cart{}, err
	}
	return c, nil
}

type orderMapper struct{}

func (orderMapper) Columns() []string {
	return []string{"user_id", "items", "total_cents", "status", "shipping_address", "created_at", "updated_at"}
}

func (orderMapper) ToRecord(o Order) filedb.Record {
	return filedb.Record{
		filedb.IDField:     o.ID,
		"user_id":          o.UserID,
		"items":            encodeJSON(o.Items),
		"total_cents":      strconv.FormatInt(o.TotalCents, 10),
		"status":           string(o.Status),
		"shipping_address": o.ShippingAddress,
		"created_at":       filedb.FormatTime(o.CreatedAt),
		"updated_at":       filedb.FormatTime(o.UpdatedAt),
	}
}

func (orderMapper) FromRecord(r filedb.Record) (Order, error) {
	o := Order{
		ID:              r.ID(),
		UserID:          r["user_id"],
		Items:           []Item{},
		Status:          Status(r["status"]),
		ShippingAddress: r["shipping_address"],
	}
	if err := decodeJSON(r["items"], &o.Items); err != nil {
		return Order{}, fmt.Errorf("items: %w", err)
	}

	var err error
	if v := r["total_cents"]; v != "" {
		if o.TotalCents, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Order{}, fmt.Errorf("total_cents: %w", err)
		}
	}
	if o.Status == "" {
		o.Status = StatusPlaced
	}
	if o.CreatedAt, err = filedb.ParseTime(r["created_at"]); err != nil {
		return Order{}, err
	}
	if o.UpdatedAt, err = filedb.ParseTime(r["updated_at"]); err != nil {
		return Order{}, err
	}
	return o, nil
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeJSON(s string, dst any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
