// Command cartcheck validates a cart JSON file and prints its health report.
//
// The file may hold a bare item list or a persisted cart record. With
// -expect, the computed totals are checked against a JSON breakdown.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/env"
)

const (
	exitOK       = 0
	exitProblems = 1
	exitUsage    = 2
)

type expectedTotals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
	TotalItems int             `json:"totalItems"`
}

type report struct {
	Validation   cart.CartValidation `json:"validation"`
	Totals       cart.Totals         `json:"totals"`
	Health       cart.Health         `json:"health"`
	Verification *cart.Verification  `json:"verification,omitempty"`
}

func (r report) ok() bool {
	return r.Health.IsHealthy && (r.Verification == nil || r.Verification.IsValid)
}

const envFile = "CARTCHECK_FILE"

func main() {
	// .env may set CARTCHECK_FILE
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cartcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", env.Get(envFile, "-"), "cart JSON file, - for stdin (default from "+envFile+")")
	expect := fs.String("expect", "", "JSON file with expected subtotal, tax, shipping, total and totalItems")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	data, err := readInput(*file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "cartcheck: %v\n", err)
		return exitUsage
	}

	rep := buildReport(itemsOf(data))

	if *expect != "" {
		expected, err := readExpected(*expect)
		if err != nil {
			fmt.Fprintf(stderr, "cartcheck: %v\n", err)
			return exitUsage
		}
		v := cart.VerifyCalculations(rep.Totals, expected)
		rep.Verification = &v
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(stderr, "cartcheck: %v\n", err)
			return exitUsage
		}
	} else {
		printReport(stdout, rep)
	}

	if !rep.ok() {
		return exitProblems
	}
	return exitOK
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// itemsOf returns the item list inside a persisted record, or data itself.
func itemsOf(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var rec struct {
		Items json.RawMessage `json:"items"`
		State *struct {
			Items json.RawMessage `json:"items"`
		} `json:"state"`
	}
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return trimmed
	}
	if len(rec.Items) > 0 {
		return rec.Items
	}
	if rec.State != nil && len(rec.State.Items) > 0 {
		return rec.State.Items
	}
	return trimmed
}

func buildReport(raw []byte) report {
	decoded, _ := cart.DecodeItems(raw)
	items := make([]cart.LineItem, 0, len(decoded))
	for _, entry := range decoded {
		items = append(items, entry.Item)
	}
	totals := cart.CalculateCartTotals(items)
	validation := cart.ValidateCartPayload(raw)
	totals.Validation = validation
	return report{
		Validation: validation,
		Totals:     totals,
		Health:     cart.GetCartHealthPayload(raw),
	}
}

func readExpected(path string) (cart.Totals, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cart.Totals{}, err
	}
	var exp expectedTotals
	if err := json.Unmarshal(data, &exp); err != nil {
		return cart.Totals{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if exp.TotalItems < 0 {
		return cart.Totals{}, errors.New("totalItems must not be negative")
	}
	return cart.Totals{
		Subtotal:   exp.Subtotal,
		Tax:        exp.Tax,
		Shipping:   exp.Shipping,
		Total:      exp.Total,
		TotalItems: exp.TotalItems,
	}, nil
}

func printReport(w io.Writer, rep report) {
	rule := strings.Repeat("-", 36)

	fmt.Fprintln(w, "Validation")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Valid: %t\n", rep.Validation.IsValid)
	for _, e := range rep.Validation.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, warn := range rep.Validation.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Totals")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Subtotal:  $%s\n", rep.Totals.Subtotal.StringFixed(2))
	fmt.Fprintf(w, "  Tax (10%%): $%s\n", rep.Totals.Tax.StringFixed(2))
	fmt.Fprintf(w, "  Shipping:  $%s\n", rep.Totals.Shipping.StringFixed(2))
	fmt.Fprintf(w, "  Total:     $%s\n", rep.Totals.Total.StringFixed(2))
	fmt.Fprintf(w, "  Items:     %d\n", rep.Totals.TotalItems)
	fmt.Fprintln(w)

	if v := rep.Verification; v != nil {
		fmt.Fprintln(w, "Verification")
		fmt.Fprintln(w, rule)
		if v.IsValid {
			fmt.Fprintln(w, "PASSED")
		} else {
			fmt.Fprintln(w, "FAILED")
			for _, name := range []string{"subtotal", "tax", "shipping", "total", "totalItems"} {
				if d, ok := v.Differences[name]; ok {
					fmt.Fprintf(w, "  %s: got %s, expected %s (off by %s)\n", name, d.Current, d.Expected, d.Difference)
				}
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Health")
	fmt.Fprintln(w, rule)
	status := "HEALTHY"
	if !rep.Health.IsHealthy {
		status = "UNHEALTHY"
	}
	fmt.Fprintf(w, "Status:      %s\n", status)
	fmt.Fprintf(w, "Item count:  %d\n", rep.Health.ItemCount)
	fmt.Fprintf(w, "Total items: %d\n", rep.Health.TotalItems)
	fmt.Fprintf(w, "Total value: $%s\n", rep.Health.TotalValue.StringFixed(2))
}
