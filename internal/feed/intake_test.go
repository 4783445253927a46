package feed

import "testing"

func TestOnPayloadForwardsToSplitter(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewSplitter(sink)
	in := NewIntake(s)

	in.OnPayload(deleteMsg(1), 42)

	if in.RxPackets() != 1 {
		t.Errorf("RxPackets() = %d, want 1", in.RxPackets())
	}
	if in.RxBytes() != 19 {
		t.Errorf("RxBytes() = %d, want 19", in.RxBytes())
	}
	if len(sink.frames) != 1 || sink.frames[0].IngressTs != 42 {
		t.Fatalf("frame not forwarded with ingress timestamp, got %+v", sink.frames)
	}
}

func TestOnPayloadDropsEmptyPayload(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	in := NewIntake(NewSplitter(sink))

	in.OnPayload(nil, 1)

	if in.Drops() != 1 {
		t.Errorf("Drops() = %d, want 1", in.Drops())
	}
	if len(sink.frames) != 0 {
		t.Error("an empty payload should never reach the splitter")
	}
}

func TestOnPayloadCarriesOverShortFragment(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	in := NewIntake(NewSplitter(sink))

	msg := deleteMsg(9)
	in.OnPayload(msg[:3], 10)
	if len(sink.frames) != 0 {
		t.Fatal("a bare 3-byte fragment should not produce a frame yet")
	}
	if in.Drops() != 0 {
		t.Errorf("Drops() = %d, want 0 (a short fragment is carried over, not dropped)", in.Drops())
	}

	in.OnPayload(msg[3:], 20)
	if len(sink.frames) != 1 {
		t.Fatalf("expected the reassembled message to reach the sink, got %d frames", len(sink.frames))
	}
	if sink.frames[0].Seq != 9 {
		t.Errorf("Seq = %d, want 9", sink.frames[0].Seq)
	}
	if sink.frames[0].IngressTs != 10 {
		t.Errorf("IngressTs = %d, want 10 (the timestamp of the fragment's first byte)", sink.frames[0].IngressTs)
	}
}
