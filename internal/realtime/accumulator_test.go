package realtime

import "testing"

func TestAccumulator_FinalizePrefersUpstreamText(t *testing.T) {
	var acc accumulator
	acc.addText("partial ")
	acc.addText("text")
	acc.addAudio([]byte{1, 0})

	resp := acc.finalize("the full transcript")
	if resp.Text != "the full transcript" {
		t.Fatalf("text = %q", resp.Text)
	}
	if len(resp.Audio) != 1 {
		t.Fatalf("audio chunks = %d", len(resp.Audio))
	}
}

func TestAccumulator_FallsBackToDeltasAndResets(t *testing.T) {
	var acc accumulator
	acc.addText("hello ")
	acc.addText("world")

	resp := acc.finalize("")
	if resp.Text != "hello world" {
		t.Fatalf("text = %q", resp.Text)
	}

	// A second response starts from a clean slate.
	acc.addAudio([]byte{2, 0})
	next := acc.finalize("")
	if next.Text != "" || len(next.Audio) != 1 {
		t.Fatalf("next = %+v", next)
	}
	if len(resp.Audio) != 0 {
		t.Fatal("earlier response must not see later audio")
	}
}
