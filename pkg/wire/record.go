// Package wire implements the 64-byte decision record wire format: its
// field layout, little-endian encode/decode, and the CRC-16-CCITT checksum
// that covers it.
package wire

import "encoding/binary"

// RecordSize is the fixed, cache-line-aligned size of a decision record.
const RecordSize = 64

// crcSpan is the number of leading bytes the payload CRC covers (everything
// before the checksum field itself).
const crcSpan = 52

// Flag bits within DecisionRecord.Flags.
const (
	FlagAccept        = 1 << 0
	FlagStale         = 1 << 1
	FlagPriceBandFail = 1 << 2
	FlagTokenFail     = 1 << 3
	FlagPositionFail  = 1 << 4
	FlagKillActive    = 1 << 5
)

// Record offsets, per spec.
const (
	offSeq         = 0
	offReserved1   = 4
	offTsIngress   = 8
	offTsDecision  = 16
	offSymbolIndex = 24
	offSide        = 26
	offFlags       = 27
	offQty         = 28
	offPrice       = 32
	offRefPrice    = 36
	offFeature0    = 40
	offFeature1    = 44
	offFeature2    = 48
	offCRC16       = 52
	offPad         = 54
	offReserved2   = 56
)

// DecisionRecord is the 64-byte record published to the ring for every
// risk-gate verdict.
type DecisionRecord struct {
	Seq         uint32
	TsIngress   uint64
	TsDecision  uint64
	SymbolIndex uint16
	Side        uint8
	Flags       uint8
	Qty         uint32
	Price       uint32
	RefPrice    uint32
	Feature0    uint32
	Feature1    int32
	Feature2    uint32
	PayloadCRC  uint16
}

// Encode writes r into buf (which must be at least RecordSize bytes) in the
// wire layout, computing PayloadCRC over bytes 0..51 and writing it last.
func Encode(r *DecisionRecord, buf []byte) {
	_ = buf[RecordSize-1]

	binary.LittleEndian.PutUint32(buf[offSeq:], r.Seq)
	binary.LittleEndian.PutUint32(buf[offReserved1:], 0)
	binary.LittleEndian.PutUint64(buf[offTsIngress:], r.TsIngress)
	binary.LittleEndian.PutUint64(buf[offTsDecision:], r.TsDecision)
	binary.LittleEndian.PutUint16(buf[offSymbolIndex:], r.SymbolIndex)
	buf[offSide] = r.Side
	buf[offFlags] = r.Flags
	binary.LittleEndian.PutUint32(buf[offQty:], r.Qty)
	binary.LittleEndian.PutUint32(buf[offPrice:], r.Price)
	binary.LittleEndian.PutUint32(buf[offRefPrice:], r.RefPrice)
	binary.LittleEndian.PutUint32(buf[offFeature0:], r.Feature0)
	binary.LittleEndian.PutUint32(buf[offFeature1:], uint32(r.Feature1))
	binary.LittleEndian.PutUint32(buf[offFeature2:], r.Feature2)

	binary.LittleEndian.PutUint16(buf[offPad:], 0)
	binary.LittleEndian.PutUint64(buf[offReserved2:], 0)

	crc := CRC16CCITT(buf[:crcSpan])
	binary.LittleEndian.PutUint16(buf[offCRC16:], crc)
}

// Decode parses buf (which must be at least RecordSize bytes) into a
// DecisionRecord. It does not verify the CRC; callers that need validation
// should call VerifyCRC separately.
func Decode(buf []byte) DecisionRecord {
	_ = buf[RecordSize-1]

	return DecisionRecord{
		Seq:         binary.LittleEndian.Uint32(buf[offSeq:]),
		TsIngress:   binary.LittleEndian.Uint64(buf[offTsIngress:]),
		TsDecision:  binary.LittleEndian.Uint64(buf[offTsDecision:]),
		SymbolIndex: binary.LittleEndian.Uint16(buf[offSymbolIndex:]),
		Side:        buf[offSide],
		Flags:       buf[offFlags],
		Qty:         binary.LittleEndian.Uint32(buf[offQty:]),
		Price:       binary.LittleEndian.Uint32(buf[offPrice:]),
		RefPrice:    binary.LittleEndian.Uint32(buf[offRefPrice:]),
		Feature0:    binary.LittleEndian.Uint32(buf[offFeature0:]),
		Feature1:    int32(binary.LittleEndian.Uint32(buf[offFeature1:])),
		Feature2:    binary.LittleEndian.Uint32(buf[offFeature2:]),
		PayloadCRC:  binary.LittleEndian.Uint16(buf[offCRC16:]),
	}
}

// VerifyCRC reports whether buf's stored payload_crc16 matches the CRC of
// bytes 0..51.
func VerifyCRC(buf []byte) bool {
	_ = buf[RecordSize-1]
	want := binary.LittleEndian.Uint16(buf[offCRC16:])
	return CRC16CCITT(buf[:crcSpan]) == want
}
