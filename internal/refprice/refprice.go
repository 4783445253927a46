// Package refprice implements the per-symbol reference price table: a flat
// array of single-word atomics, written rarely from the configuration
// side-channel and read by the risk gate on every book event.
package refprice

import "sync/atomic"

// Table is a fixed-capacity reference-price array indexed by symbol index.
// Zero means "no reference loaded," which disables the price-band check for
// that symbol.
type Table struct {
	prices []atomic.Uint32
}

// New builds a Table sized for capacity symbol indices.
func New(capacity int) *Table {
	return &Table{prices: make([]atomic.Uint32, capacity)}
}

// Set stores the reference price for index. A single-word store; readers
// tolerate tearing, as reference prices change rarely and the price-band
// check uses coarse thresholds.
func (t *Table) Set(index uint16, price uint32) {
	if int(index) >= len(t.prices) {
		return
	}
	t.prices[index].Store(price)
}

// Get reads the reference price for index, or 0 if index is out of range
// or has never been set.
func (t *Table) Get(index uint16) uint32 {
	if int(index) >= len(t.prices) {
		return 0
	}
	return t.prices[index].Load()
}
