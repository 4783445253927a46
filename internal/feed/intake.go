// Package feed implements frame intake and ITCH message framing: turning a
// stream of raw UDP payloads into a sequence of typed, ingress-timestamped
// message frames.
package feed

// MinHeaderLen is the minimum length of an ITCH message header (type byte,
// 4-byte sequence, 6-byte wire timestamp) needed to read a message's type
// and length. A trailing fragment shorter than this is carried over to the
// next payload rather than treated as a framing failure.
const MinHeaderLen = 11

// Intake receives raw UDP payload chunks with their ingress timestamps and
// forwards them to a Splitter. It does not validate IP/UDP framing — that is
// the adapter's responsibility. A message whose bytes straddle two payloads
// is reassembled by the Splitter's carry-over buffer, not here: Intake only
// rejects payloads that carry no data at all.
type Intake struct {
	splitter *Splitter
	drops    uint64
	rxPkts   uint64
	rxBytes  uint64
}

// NewIntake builds an Intake that forwards framed messages to splitter.
func NewIntake(splitter *Splitter) *Intake {
	return &Intake{splitter: splitter}
}

// OnPayload ingests one UDP payload captured at ingressTsNs. Every message
// framed out of payload inherits ingressTsNs as its ingress timestamp,
// except a message completed from a prior payload's carry-over, which keeps
// the timestamp it first arrived with.
func (in *Intake) OnPayload(payload []byte, ingressTsNs uint64) {
	in.rxPkts++
	in.rxBytes += uint64(len(payload))

	if len(payload) == 0 {
		in.drops++
		return
	}
	in.splitter.Feed(payload, ingressTsNs)
}

// Drops reports the number of empty payloads observed.
func (in *Intake) Drops() uint64 { return in.drops }

// RxPackets reports the number of payloads observed.
func (in *Intake) RxPackets() uint64 { return in.rxPkts }

// RxBytes reports the total bytes observed across all payloads.
func (in *Intake) RxBytes() uint64 { return in.rxBytes }
