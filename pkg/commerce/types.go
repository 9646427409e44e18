package commerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the catalog view of a product returned by the storefront API.
type Product struct {
	ID           string
	Name         string
	Slug         string
	Price        decimal.Decimal
	Stock        *int
	ThumbnailURL string
	ImageURL     string
}

// CartEntry is one line of the server-side cart.
type CartEntry struct {
	Product  Product
	Quantity int
}

type productWire struct {
	ID           json.RawMessage `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Price        decimal.Decimal `json:"price"`
	Stock        *int            `json:"stock"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	ImageURL     *string         `json:"image_url"`
}

func (w productWire) product() Product {
	return Product{
		ID:           rawID(w.ID),
		Name:         w.Name,
		Slug:         w.Slug,
		Price:        w.Price,
		Stock:        w.Stock,
		ThumbnailURL: deref(w.ThumbnailURL),
		ImageURL:     deref(w.ImageURL),
	}
}

type cartWire struct {
	Items []struct {
		Product  productWire `json:"product"`
		Quantity int         `json:"quantity"`
	} `json:"items"`
}

func rawID(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(trimmed, &n) == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return string(trimmed)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
