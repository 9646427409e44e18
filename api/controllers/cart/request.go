package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/api/validators"
	cartsvc "github.com/angelmondragon/storefront-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

const maxNameLength = 255

// productInput is an inline product as the storefront UI sends it. Either
// image or the catalog's thumbnail_url/image_url may be set.
type productInput struct {
	ID           cartsvc.ProductID `json:"id" validate:"required"`
	Name         string            `json:"name" validate:"required"`
	Price        decimal.Decimal   `json:"price"`
	Stock        *int              `json:"stock" validate:"omitempty,min=0"`
	Image        string            `json:"image"`
	ThumbnailURL string            `json:"thumbnail_url"`
	ImageURL     string            `json:"image_url"`
	Slug         string            `json:"slug"`
}

func (p productInput) product() cartsvc.Product {
	image := p.Image
	if image == "" {
		image = p.ThumbnailURL
	}
	if image == "" {
		image = p.ImageURL
	}
	return cartsvc.Product{
		ID:    cartsvc.ProductID(strings.TrimSpace(p.ID.String())),
		Name:  validators.SanitizeString(p.Name, maxNameLength),
		Price: p.Price,
		Stock: p.Stock,
		Image: image,
		Slug:  p.Slug,
	}
}

// addItemRequest carries either an inline product or a catalog slug.
type addItemRequest struct {
	Product  *productInput `json:"product" validate:"required_without=Slug,excluded_with=Slug"`
	Slug     string        `json:"slug" validate:"required_without=Product,max=255"`
	Quantity int           `json:"quantity" validate:"omitempty,min=1"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func productIDParam(r *http.Request) (cartsvc.ProductID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productID"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return cartsvc.ProductID(raw), nil
}
