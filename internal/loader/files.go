// Package loader parses the symbol and reference-price file formats
// (spec.md §6) from local disk or, via an http(s) path, a remote URL.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tickengine/pkg/types"
)

// SymbolEntry is one parsed line of a symbol file.
type SymbolEntry struct {
	Key   types.SymbolKey
	Index uint16
}

// ReferencePriceEntry is one parsed line of a reference-price file.
type ReferencePriceEntry struct {
	Index uint16
	Price uint32
}

// ParseSymbolFile parses the "SYMBOL,INDEX" text format: one entry per line,
// '#'-prefixed comment lines skipped, symbols right-space-padded to 8 bytes
// and rejected if longer.
func ParseSymbolFile(r io.Reader) ([]SymbolEntry, error) {
	var entries []SymbolEntry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("loader: symbol file line %d: expected SYMBOL,INDEX", line)
		}
		key, err := types.NewSymbolKey(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("loader: symbol file line %d: %w", line, err)
		}
		idx, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("loader: symbol file line %d: invalid index: %w", line, err)
		}
		entries = append(entries, SymbolEntry{Key: key, Index: uint16(idx)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("loader: reading symbol file: %w", err)
	}
	return entries, nil
}

// ParseReferencePriceFile parses the "INDEX,PRICE" text format: PRICE is
// decimal, multiplied by 10000 and rounded half-up to the stored
// fixed-point value.
func ParseReferencePriceFile(r io.Reader) ([]ReferencePriceEntry, error) {
	var entries []ReferencePriceEntry
	sc := bufio.NewScanner(r)
	line := 0
	scale := decimal.NewFromInt(10000)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("loader: reference price file line %d: expected INDEX,PRICE", line)
		}
		idx, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("loader: reference price file line %d: invalid index: %w", line, err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("loader: reference price file line %d: invalid price: %w", line, err)
		}
		scaled := price.Mul(scale).Round(0)
		entries = append(entries, ReferencePriceEntry{
			Index: uint16(idx),
			Price: uint32(scaled.IntPart()),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("loader: reading reference price file: %w", err)
	}
	return entries, nil
}

// LoadSymbolFileFromDisk opens and parses a local symbol file.
func LoadSymbolFileFromDisk(path string) ([]SymbolEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open symbol file: %w", err)
	}
	defer f.Close()
	return ParseSymbolFile(f)
}

// LoadReferencePriceFileFromDisk opens and parses a local reference-price
// file.
func LoadReferencePriceFileFromDisk(path string) ([]ReferencePriceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open reference price file: %w", err)
	}
	defer f.Close()
	return ParseReferencePriceFile(f)
}
