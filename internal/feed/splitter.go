package feed

import (
	"encoding/binary"
	"sync/atomic"
)

// messageLengths is the static ITCH type->total-length table (type byte
// included in the length), per the splitter's framing contract. Types not
// present here have no defined length in this implementation and are
// treated as framing failures rather than guessed at.
var messageLengths = map[byte]int{
	'S': 12,
	'R': 39,
	'H': 25,
	'A': 36,
	'F': 40,
	'E': 31,
	'C': 36,
	'X': 23,
	'D': 19,
	'U': 35,
	'P': 44,
	'Q': 40,
}

// bookAffecting is the set of message types that carry top-of-book mutation.
var bookAffecting = map[byte]bool{
	'A': true, 'F': true, 'E': true, 'C': true,
	'X': true, 'D': true, 'U': true, 'P': true,
}

// Frame is one framed, ingress-timestamped ITCH message, ready for decoding.
type Frame struct {
	Type      byte
	Seq       uint32
	WireTs    uint64
	Body      []byte // full message, including the 11-byte header
	IngressTs uint64
	Stale     bool
	Book      bool
}

// FrameSink receives framed messages from a Splitter.
type FrameSink interface {
	HandleFrame(Frame)
}

// Splitter segments a packet's byte stream into fixed-schema ITCH messages,
// tracks the sequence number, and maintains the stale latch. It is not
// safe for concurrent use: it is exclusively owned by the data-path thread.
type Splitter struct {
	sink FrameSink

	seqCheckEnabled atomic.Bool
	seqGapThreshold atomic.Uint32

	expectedSeq   uint32
	haveExpected  bool
	staleLatched  bool
	staleClearAt  uint32

	pending   []byte // trailing bytes of a message that straddled the last payload boundary
	pendingTs uint64 // ingress timestamp the pending bytes arrived with

	desyncs uint64
	gaps    uint64
	dupes   uint64
}

// NewSplitter builds a Splitter that forwards framed messages to sink.
// Sequence checking is enabled by default.
func NewSplitter(sink FrameSink) *Splitter {
	s := &Splitter{sink: sink}
	s.seqCheckEnabled.Store(true)
	s.seqGapThreshold.Store(10)
	return s
}

// SetSeqCheckEnabled toggles sequence-gap tracking from the configuration
// side-channel.
func (s *Splitter) SetSeqCheckEnabled(v bool) { s.seqCheckEnabled.Store(v) }

// SetSeqGapThreshold updates the number of in-order messages required to
// clear a latched stale flag.
func (s *Splitter) SetSeqGapThreshold(n uint16) { s.seqGapThreshold.Store(uint32(n)) }

// ClearStale clears the stale latch on external (configuration) command.
func (s *Splitter) ClearStale() { s.staleLatched = false }

// Feed frames every ITCH message found in payload, in order. A trailing
// fragment too short to frame is carried over and prepended to the next
// call's payload, so a message split across a UDP payload boundary is
// reassembled rather than dropped. On an unknown type byte it counts a
// desync and drains the remainder of payload without attempting to
// resynchronize within the packet; that also forfeits any carry-over,
// since the byte stream alignment can no longer be trusted.
func (s *Splitter) Feed(payload []byte, ingressTs uint64) {
	buf := payload
	firstTs := ingressTs
	if len(s.pending) > 0 {
		buf = append(s.pending, payload...)
		firstTs = s.pendingTs
		s.pending = nil
	}

	first := true
	for len(buf) > 0 {
		typ := buf[0]
		msgLen, known := messageLengths[typ]
		if !known {
			s.desyncs++
			return
		}
		if len(buf) < msgLen {
			s.carryOver(buf, first, firstTs, ingressTs)
			return
		}

		body := buf[:msgLen]
		seq := binary.BigEndian.Uint32(body[1:5])
		wireTs := readUint48BE(body[5:11])

		ts := ingressTs
		if first {
			ts = firstTs
		}

		frame := Frame{
			Type:      typ,
			Seq:       seq,
			WireTs:    wireTs,
			Body:      body,
			IngressTs: ts,
			Book:      bookAffecting[typ],
		}

		if s.admitSequence(seq) {
			frame.Stale = s.staleLatched
			s.sink.HandleFrame(frame)
		}

		buf = buf[msgLen:]
		first = false
	}
}

// carryOver stashes an incomplete trailing message for the next Feed call.
// The stashed bytes inherit the ingress timestamp of the payload that
// delivered their first byte: firstTs if this is still the same fragment
// that arrived with the prior carry-over, otherwise the current payload's.
func (s *Splitter) carryOver(buf []byte, first bool, firstTs, ingressTs uint64) {
	s.pending = append([]byte(nil), buf...)
	if first {
		s.pendingTs = firstTs
	} else {
		s.pendingTs = ingressTs
	}
}

// admitSequence applies sequence tracking and the stale latch; it returns
// false if the message must be dropped as a duplicate/out-of-order message.
func (s *Splitter) admitSequence(seq uint32) bool {
	if !s.seqCheckEnabled.Load() {
		return true
	}
	if !s.haveExpected {
		s.haveExpected = true
		s.expectedSeq = seq + 1
		return true
	}

	switch {
	case seq < s.expectedSeq:
		s.dupes++
		return false
	case seq > s.expectedSeq:
		s.gaps++
		s.staleLatched = true
		s.expectedSeq = seq + 1
		s.staleClearAt = s.expectedSeq + s.seqGapThreshold.Load()
	default:
		s.expectedSeq = seq + 1
	}

	if s.staleLatched && seq >= s.staleClearAt {
		s.staleLatched = false
	}
	return true
}

// SeqGaps reports the number of sequence gaps observed.
func (s *Splitter) SeqGaps() uint64 { return s.gaps }

// SeqDupes reports the number of duplicate/out-of-order messages dropped.
func (s *Splitter) SeqDupes() uint64 { return s.dupes }

// Desyncs reports the number of framing failures: an unknown type byte,
// which drops the rest of the payload and any pending carry-over.
func (s *Splitter) Desyncs() uint64 { return s.desyncs }

func readUint48BE(b []byte) uint64 {
	_ = b[5]
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}
