package validators

import (
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quantityBody struct {
	Quantity *int   `json:"quantity" validate:"required"`
	Slug     string `json:"slug" validate:"omitempty,max=8"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity": 0}`))
	var dest quantityBody
	require.NoError(t, DecodeJSONBody(req, &dest))
	require.NotNil(t, dest.Quantity)
	assert.Zero(t, *dest.Quantity)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity": 1, "extra": true}`))
	var dest quantityBody
	err := DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"slug": "much-too-long"}`))
	var dest quantityBody
	err := DecodeJSONBody(req, &dest)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["quantity"])
	assert.Equal(t, "must be at most 8", details["slug"])
}

func TestReadRawBody(t *testing.T) {
	data, err := ReadRawBody(httptest.NewRequest("POST", "/", strings.NewReader(`[1]`)))
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(data))

	_, err = ReadRawBody(httptest.NewRequest("POST", "/", strings.NewReader("  ")))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abc", SanitizeString("abc", 0))

	name := SanitizeString(strings.Repeat("a", 254)+"é", 255)
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, strings.Repeat("a", 254), name)
	assert.Equal(t, "日本", SanitizeString("日本語", 8))
}
