package cart

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-cart/pkg/commerce"
)

// CartSource is the subset of the commerce client used for reconciliation.
type CartSource interface {
	GetCart(ctx context.Context) ([]commerce.CartEntry, error)
}

// CommerceFetcher reads the authoritative cart from the storefront API.
type CommerceFetcher struct {
	source CartSource
}

func NewCommerceFetcher(source CartSource) (*CommerceFetcher, error) {
	if source == nil {
		return nil, errors.New("cart source required")
	}
	return &CommerceFetcher{source: source}, nil
}

func (f *CommerceFetcher) FetchRemoteCart(ctx context.Context) ([]RemoteEntry, error) {
	entries, err := f.source.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteEntry, 0, len(entries))
	for _, entry := range entries {
		p := entry.Product
		out = append(out, RemoteEntry{
			Product: RemoteProduct{
				ID:           ProductID(p.ID),
				Name:         p.Name,
				Price:        p.Price,
				ThumbnailURL: p.ThumbnailURL,
				ImageURL:     p.ImageURL,
				Slug:         p.Slug,
				Stock:        p.Stock,
			},
			Quantity: entry.Quantity,
		})
	}
	return out, nil
}

// ProductFromCatalog converts a catalog product to the value AddItem takes.
// The thumbnail is preferred over the full image.
func ProductFromCatalog(p commerce.Product) Product {
	image := p.ThumbnailURL
	if image == "" {
		image = p.ImageURL
	}
	out := Product{
		ID:    ProductID(p.ID),
		Name:  p.Name,
		Price: p.Price,
		Image: image,
		Slug:  p.Slug,
	}
	if p.Stock != nil {
		stock := *p.Stock
		out.Stock = &stock
	}
	return out
}
