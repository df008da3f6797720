package utils

import (
	"fmt"
	"hash/fnv"
)

// HashKey condenses an arbitrary string into a fixed-width hex token, used to
// keep cache keys short and free of delimiter characters.
func HashKey(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
