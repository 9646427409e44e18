package instance

import (
	"sync"

	"github.com/angelmondragon/storefront-cart/pkg/env"
	"github.com/google/uuid"
)

const envInstanceID = "STOREFRONT_INSTANCE_ID"

var (
	once      sync.Once
	generated string
)

// GetID returns the process instance identifier. Without STOREFRONT_INSTANCE_ID
// a random id is generated once per process.
func GetID() string {
	if id := env.Get(envInstanceID, ""); id != "" {
		return id
	}
	once.Do(func() {
		generated = "cart-" + uuid.NewString()
	})
	return generated
}
