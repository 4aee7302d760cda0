package cart

import (
	"errors"

	"github.com/example/storefront-sync/internal/gateway"
)

const AggregateType = "Cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidPrice    = errors.New("unit price must be positive")
	ErrUnknownProduct  = errors.New("product is not in the cart")
	ErrNoSnapshot      = errors.New("no cart snapshot")
)

// Line is one product quantity held in the cart. ProductID is the unique key
// within a cart; name and image are display metadata, never authoritative
// for pricing. UnitPrice is in minor currency units and always comes from
// the server.
type Line struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int    `json:"quantity"`
}

// CartID returns the journal aggregate ID for a user's cart.
func CartID(userID string) string {
	return "cart-" + userID
}

func fromWire(lines []gateway.Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
		})
	}
	return out
}
