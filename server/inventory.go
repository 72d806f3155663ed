package server

import (
	"sync"
	"time"

	"github.com/houzhh15/certindex/certs"
)

// Inventory holds the current canonical certificate collection. Each
// refresh replaces the collection wholesale; it is never patched in
// place, so readers always see one coherent fetch cycle. The slice
// handed out by Snapshot is shared and must be treated as read-only,
// which every consumer honors because the query engine and exporters
// never mutate their input.
type Inventory struct {
	mu           sync.RWMutex
	certificates []certs.Certificate
	source       string
	fetchedAt    time.Time
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{}
}

// Replace swaps in a freshly normalized collection.
func (inv *Inventory) Replace(collection []certs.Certificate, source string, fetchedAt time.Time) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.certificates = collection
	inv.source = source
	inv.fetchedAt = fetchedAt
}

// Snapshot returns the current collection with its provenance.
// Source is empty until the first refresh completes.
func (inv *Inventory) Snapshot() ([]certs.Certificate, string, time.Time) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.certificates, inv.source, inv.fetchedAt
}
