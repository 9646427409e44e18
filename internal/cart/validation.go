package cart

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxCartItems is the soft ceiling above which ValidateCart warns.
	MaxCartItems = 100

	errCartNotArray = "Cart items must be an array"
)

// ErrNotArray is returned by DecodeItems when the payload is not a JSON array.
var ErrNotArray = errors.New("cart items must be an array")

type itemField int

const (
	fieldID itemField = iota
	fieldName
	fieldPrice
	fieldQuantity
	fieldStock
)

// coercionErrors maps a field to the message recorded when its wire value
// could not be interpreted.
type coercionErrors map[itemField]string

// ValidateLineItem checks one item against the cart schema and the advisory
// stock ceiling. Every failing rule is reported.
func ValidateLineItem(item LineItem) ItemValidation {
	return validateItem(item, nil)
}

func validateItem(item LineItem, coerced coercionErrors) ItemValidation {
	var (
		errs       []string
		structural bool
	)
	fail := func(msg string) {
		errs = append(errs, msg)
		structural = true
	}

	if msg, ok := coerced[fieldID]; ok {
		fail(msg)
	} else if strings.TrimSpace(item.ID.String()) == "" {
		fail(fmt.Sprintf("Invalid product ID: %s", item.ID))
	}

	if msg, ok := coerced[fieldName]; ok {
		fail(msg)
	} else if item.Name == "" {
		fail("Product name is required")
	}

	if msg, ok := coerced[fieldPrice]; ok {
		fail(msg)
	} else if item.Price.IsNegative() {
		fail(fmt.Sprintf("Invalid price: %s", item.Price.String()))
	}

	if msg, ok := coerced[fieldQuantity]; ok {
		fail(msg)
	} else if item.Quantity <= 0 {
		fail(fmt.Sprintf("Invalid quantity: %d", item.Quantity))
	}

	if msg, ok := coerced[fieldStock]; ok {
		fail(msg)
	} else if item.Stock != nil && *item.Stock < 0 {
		fail(fmt.Sprintf("Invalid stock: %d", *item.Stock))
	}

	exceeded := item.Stock != nil && item.Quantity > *item.Stock
	if exceeded {
		errs = append(errs, fmt.Sprintf("Quantity (%d) exceeds available stock (%d)", item.Quantity, *item.Stock))
	}

	return ItemValidation{
		IsValid:       len(errs) == 0,
		Errors:        errs,
		StockExceeded: exceeded,
		structural:    structural,
	}
}

// ValidateCart validates every item and scans for duplicates and oversize
// carts. Warnings never affect IsValid.
func ValidateCart(items []LineItem) CartValidation {
	decoded := make([]DecodedItem, len(items))
	for i, item := range items {
		decoded[i] = DecodedItem{Item: item}
	}
	return validateDecoded(decoded)
}

// ValidateCartPayload validates a raw JSON item list, including entries whose
// fields could not be coerced.
func ValidateCartPayload(raw []byte) CartValidation {
	decoded, err := DecodeItems(raw)
	if err != nil {
		return CartValidation{
			IsValid:  false,
			Errors:   []string{errCartNotArray},
			Warnings: []string{},
		}
	}
	return validateDecoded(decoded)
}

func validateDecoded(items []DecodedItem) CartValidation {
	errs := []string{}
	warnings := []string{}

	for i, entry := range items {
		result := entry.validate()
		if result.IsValid {
			continue
		}
		name := entry.Item.Name
		if name == "" {
			name = "Unknown"
		}
		errs = append(errs, fmt.Sprintf("Item %d (%s): %s", i+1, name, strings.Join(result.Errors, ", ")))
	}

	if dups := duplicateIDs(items); len(dups) > 0 {
		warnings = append(warnings, "Duplicate items found: "+strings.Join(dups, ", "))
	}

	if len(items) > MaxCartItems {
		warnings = append(warnings, fmt.Sprintf("Cart has too many items (>%d)", MaxCartItems))
	}

	return CartValidation{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// duplicateIDs lists every occurrence of an id after its first one, in
// order of appearance.
func duplicateIDs(items []DecodedItem) []string {
	seen := make(map[ProductID]struct{}, len(items))
	var dups []string
	for _, entry := range items {
		id := entry.Item.ID
		if _, ok := seen[id]; ok {
			dups = append(dups, id.String())
			continue
		}
		seen[id] = struct{}{}
	}
	return dups
}
