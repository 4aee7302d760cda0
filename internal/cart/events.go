package cart

import "time"

const (
	EventCartLoaded  = "CartLoaded"
	EventItemAdded   = "ItemAddedToCart"
	EventQuantitySet = "CartQuantitySet"
	EventItemRemoved = "ItemRemovedFromCart"
	EventCartCleared = "CartCleared"
)

type CartLoaded struct {
	CartID     string    `json:"cart_id"`
	UserID     string    `json:"user_id"`
	LineCount  int       `json:"line_count"`
	TotalMinor int64     `json:"total_minor_units"`
	LoadedAt   time.Time `json:"loaded_at"`
}

type ItemAddedToCart struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}

type CartQuantitySet struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	SetAt     time.Time `json:"set_at"`
}

type ItemRemovedFromCart struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartCleared struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	ClearedAt time.Time `json:"cleared_at"`
}
