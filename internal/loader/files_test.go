package loader

import (
	"strings"
	"testing"
)

func TestParseSymbolFile(t *testing.T) {
	t.Parallel()

	input := "# comment\nAAPL,0\nMSFT,1\n\nGOOG,2\n"
	entries, err := ParseSymbolFile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseSymbolFile: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Key.String() != "AAPL    " || entries[0].Index != 0 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
}

func TestParseSymbolFileRejectsTooLong(t *testing.T) {
	t.Parallel()

	_, err := ParseSymbolFile(strings.NewReader("TOOLONGSYMBOL,0\n"))
	if err == nil {
		t.Error("expected error for symbol longer than 8 bytes")
	}
}

func TestParseReferencePriceFileRoundsHalfUp(t *testing.T) {
	t.Parallel()

	input := "0,150.25005\n1,10\n"
	entries, err := ParseReferencePriceFile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseReferencePriceFile: %v", err)
	}
	if entries[0].Price != 1502501 {
		t.Errorf("entry 0 price = %d, want 1502501 (150.25005 * 10000 rounded half-up)", entries[0].Price)
	}
	if entries[1].Price != 100000 {
		t.Errorf("entry 1 price = %d, want 100000", entries[1].Price)
	}
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	if !IsRemote("https://example.com/symbols.txt") {
		t.Error("expected https URL to be remote")
	}
	if IsRemote("/etc/tickengine/symbols.txt") {
		t.Error("expected local path to not be remote")
	}
}
