package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DecodedItem is a line item read from JSON together with the fields that
// could not be coerced. Uncoercible numbers decode as zero so totals stay
// computable.
type DecodedItem struct {
	Item    LineItem
	coerced coercionErrors
}

func (d DecodedItem) validate() ItemValidation {
	return validateItem(d.Item, d.coerced)
}

// Valid reports whether the entry passes ValidateLineItem and had no
// coercion failures.
func (d DecodedItem) Valid() bool {
	return d.validate().IsValid
}

type rawLineItem struct {
	ID       json.RawMessage `json:"id"`
	Name     json.RawMessage `json:"name"`
	Price    json.RawMessage `json:"price"`
	Quantity json.RawMessage `json:"quantity"`
	Stock    json.RawMessage `json:"stock"`
	Image    string          `json:"image"`
	Slug     string          `json:"slug"`
}

// DecodeItems splits a JSON array into individually decoded entries. Only a
// payload that is not an array fails as a whole.
func DecodeItems(raw []byte) ([]DecodedItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}
	out := make([]DecodedItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, DecodeLineItem(entry))
	}
	return out, nil
}

// DecodeLineItem coerces one JSON object into a LineItem.
func DecodeLineItem(raw []byte) DecodedItem {
	coerced := coercionErrors{}
	var fields rawLineItem
	if err := json.Unmarshal(raw, &fields); err != nil {
		coerced[fieldID] = fmt.Sprintf("Invalid product ID: %s", literal(nil))
		coerced[fieldName] = "Product name is required"
		coerced[fieldPrice] = fmt.Sprintf("Invalid price: %s", literal(nil))
		coerced[fieldQuantity] = fmt.Sprintf("Invalid quantity: %s", literal(nil))
		return DecodedItem{coerced: coerced}
	}

	item := LineItem{Image: fields.Image, Slug: fields.Slug}

	if id, ok := parseProductID(fields.ID); ok && !numericZero(fields.ID) {
		item.ID = id
	} else {
		coerced[fieldID] = fmt.Sprintf("Invalid product ID: %s", literal(fields.ID))
	}

	if len(fields.Name) > 0 {
		if err := json.Unmarshal(fields.Name, &item.Name); err != nil {
			coerced[fieldName] = "Product name is required"
		}
	}

	if price, ok := coercePrice(fields.Price); ok {
		item.Price = price
	} else {
		coerced[fieldPrice] = fmt.Sprintf("Invalid price: %s", literal(fields.Price))
	}

	qty, isInteger := coerceQuantity(fields.Quantity)
	item.Quantity = qty
	if !isInteger {
		coerced[fieldQuantity] = fmt.Sprintf("Invalid quantity: %s", literal(fields.Quantity))
	}

	if stock, present, ok := coerceStock(fields.Stock); !ok {
		coerced[fieldStock] = fmt.Sprintf("Invalid stock: %s", literal(fields.Stock))
	} else if present {
		item.Stock = &stock
	}

	if len(coerced) == 0 {
		coerced = nil
	}
	return DecodedItem{Item: item, coerced: coerced}
}

// coercePrice accepts a JSON number or a numeric string.
func coercePrice(raw json.RawMessage) (decimal.Decimal, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, false
	}
	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return decimal.Zero, false
		}
		text = strings.TrimSpace(text)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// coerceQuantity returns the integer part of a numeric quantity (strings
// included) and whether the wire value was a JSON integer.
func coerceQuantity(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0, false
		}
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return 0, false
		}
		n, _ := intPart(d)
		return n, false
	}
	d, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return 0, false
	}
	n, fits := intPart(d)
	return n, fits && d.IsInteger()
}

func coerceStock(raw json.RawMessage) (stock int, present bool, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false, true
	}
	d, err := decimal.NewFromString(string(trimmed))
	if err != nil || !d.IsInteger() {
		return 0, true, false
	}
	n, fits := intPart(d)
	if !fits {
		return 0, true, false
	}
	return n, true, true
}

// intPart truncates d toward zero. Values outside the int range report
// false and yield zero.
func intPart(d decimal.Decimal) (int, bool) {
	b := d.BigInt()
	if !b.IsInt64() {
		return 0, false
	}
	v := b.Int64()
	if v > math.MaxInt || v < math.MinInt {
		return 0, false
	}
	return int(v), true
}

// numericZero reports a JSON number equal to zero, which is not a usable id.
func numericZero(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' {
		return false
	}
	d, err := decimal.NewFromString(string(trimmed))
	return err == nil && d.IsZero()
}

func literal(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "undefined"
	}
	var text string
	if trimmed[0] == '"' && json.Unmarshal(trimmed, &text) == nil {
		return text
	}
	return string(trimmed)
}
