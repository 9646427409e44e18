package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

var now = time.Now

// CleanCart keeps the items that pass ValidateLineItem. Removed entries are
// returned with their errors so callers can log them.
func CleanCart(items []LineItem) ([]LineItem, []RejectedItem) {
	kept := make([]LineItem, 0, len(items))
	var rejected []RejectedItem
	for i, item := range items {
		result := ValidateLineItem(item)
		if !result.IsValid {
			rejected = append(rejected, RejectedItem{Index: i, Item: item.clone(), Errors: result.Errors})
			continue
		}
		kept = append(kept, item.clone())
	}
	return kept, rejected
}

// GetCartHealth combines validation and totals into one diagnostic report.
func GetCartHealth(items []LineItem) Health {
	return healthFrom(len(items), ValidateCart(items), CalculateCartTotals(items))
}

// GetCartHealthPayload is GetCartHealth over a raw JSON item list.
func GetCartHealthPayload(raw []byte) Health {
	decoded, err := DecodeItems(raw)
	if err != nil {
		validation := ValidateCartPayload(raw)
		return healthFrom(0, validation, buildTotals(decimal.Zero, 0, validation))
	}
	return healthFrom(len(decoded), validateDecoded(decoded), calculateDecodedTotals(decoded))
}

func healthFrom(count int, validation CartValidation, totals Totals) Health {
	errs := mergeMessages(validation.Errors, totals.Validation.Errors)
	warnings := mergeMessages(validation.Warnings, totals.Validation.Warnings)
	return Health{
		IsHealthy:   validation.IsValid && totals.Validation.IsValid,
		ItemCount:   count,
		TotalItems:  totals.TotalItems,
		TotalValue:  totals.Total,
		Errors:      errs,
		Warnings:    warnings,
		LastChecked: now().UTC(),
	}
}

// mergeMessages concatenates lists, dropping repeats.
func mergeMessages(lists ...[]string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, msg := range list {
			if _, ok := seen[msg]; ok {
				continue
			}
			seen[msg] = struct{}{}
			out = append(out, msg)
		}
	}
	return out
}
