package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	r := DecisionRecord{
		Seq:         42,
		TsIngress:   1000,
		TsDecision:  1200,
		SymbolIndex: 7,
		Side:        0,
		Flags:       FlagAccept,
		Qty:         100,
		Price:       1500000,
		RefPrice:    1500000,
		Feature0:    2500,
		Feature1:    -300,
		Feature2:    1499000,
	}

	buf := make([]byte, RecordSize)
	Encode(&r, buf)

	got := Decode(buf)
	r.PayloadCRC = got.PayloadCRC // computed by Encode, not set above
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestEncodeReservedAndPadZero(t *testing.T) {
	t.Parallel()

	r := DecisionRecord{Seq: 1}
	buf := make([]byte, RecordSize)
	Encode(&r, buf)

	for i := 56; i < 64; i++ {
		if buf[i] != 0 {
			t.Errorf("reserved byte %d = %d, want 0", i, buf[i])
		}
	}
	if buf[4] != 0 || buf[5] != 0 || buf[6] != 0 || buf[7] != 0 {
		t.Error("reserved bytes [4:8] not zero")
	}
	if buf[54] != 0 || buf[55] != 0 {
		t.Error("pad bytes [54:56] not zero")
	}
}

func TestCRCCoversFirst52BytesOnly(t *testing.T) {
	t.Parallel()

	r := DecisionRecord{Seq: 99, Price: 123456}
	buf := make([]byte, RecordSize)
	Encode(&r, buf)

	if !VerifyCRC(buf) {
		t.Fatal("freshly encoded record should verify")
	}

	// Mutating a reserved tail byte must not affect the CRC.
	buf[63] ^= 0xFF
	if !VerifyCRC(buf) {
		t.Error("CRC should be independent of bytes 52..63 (other than the CRC field itself)")
	}

	// Mutating a covered byte must break it.
	buf[0] ^= 0xFF
	if VerifyCRC(buf) {
		t.Error("CRC should depend on bytes 0..51")
	}
}

func TestCRC16CCITTKnownVector(t *testing.T) {
	t.Parallel()

	// "123456789" -> 0x29B1 is the standard CRC-16/CCITT-FALSE test vector,
	// which uses the same poly/init/no-reflection/no-xor-out parameters
	// this implementation uses.
	got := CRC16CCITT([]byte("123456789"))
	if got != 0x29B1 {
		t.Errorf("CRC16CCITT(123456789) = 0x%04X, want 0x29B1", got)
	}
}
