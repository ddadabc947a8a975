package cache_test

import (
	"fmt"

	"github.com/strathmore/pipescore/pkg/cache"
)

func ExampleScopedKeyer() {
	keyer := cache.NewScopedKeyer(nil, "band-42:")
	fmt.Println(keyer.DocumentKey("march"))
	// Output: band-42:doc:march
}

func ExampleLRUCache() {
	c := cache.NewLRUCache(cache.WithCapacity(2))

	key := cache.EntityKey{EntityID: "m1", Kind: cache.KindMeasure}
	c.Put(key, "laid out")

	if v, ok := c.Get(key); ok {
		fmt.Println(v)
	}
	// Output: laid out
}
