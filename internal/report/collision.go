package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// collisionResolver tracks final output paths claimed during a run and
// disambiguates duplicates. Corpora routinely hold same-named documents in
// different source directories; all of them may map to
// <category>/<basename>.txt, and silently overwriting one with another
// would break the "every row's output exists" guarantee.
type collisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // output path -> input path that owns it
	counters map[string]int    // base output path -> next suffix
}

func newCollisionResolver() *collisionResolver {
	return &collisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// resolve returns the final output path for input. If requested is unclaimed
// (or already owned by input), it is returned as-is; otherwise a numbered
// "-N" variant is generated, starting at 2.
func (cr *collisionResolver) resolve(input, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	owner, exists := cr.owners[requested]
	if !exists || owner == input {
		cr.owners[requested] = input
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := cr.counters[requested]
	if counter == 0 {
		counter = 2
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, counter, ext))
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == input {
			cr.counters[requested] = counter + 1
			cr.owners[candidate] = input
			return candidate
		}
		counter++
	}
}
