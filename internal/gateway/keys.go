package gateway

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var unsafeOpChars = regexp.MustCompile(`[^a-z0-9]+`)

// keyFactory hands out Idempotency-Key values: one per mutating request,
// unique within the session seed.
type keyFactory struct {
	seed    string
	counter atomic.Uint64
}

func newKeyFactory(seed string) *keyFactory {
	clean := strings.TrimSpace(seed)
	if clean == "" {
		clean = "records-tui-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	return &keyFactory{seed: clean}
}

func (k *keyFactory) next(op string) string {
	n := k.counter.Add(1)
	safe := strings.Trim(unsafeOpChars.ReplaceAllString(strings.ToLower(op), "-"), "-")
	if safe == "" {
		safe = "op"
	}
	return fmt.Sprintf("%s-%s-%d", k.seed, safe, n)
}
