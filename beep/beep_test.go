package beep

import "testing"

func TestTickLength(t *testing.T) {
	s := tick(1200, 0.2, 0.5, 60)
	if want := int(sampleRate * 0.2); len(s) != want {
		t.Errorf("len = %d, want %d", len(s), want)
	}
}

func TestTickEnvelopeDecays(t *testing.T) {
	s := tick(900, 0.2, 0.5, 40)

	peak := func(part []int16) int16 {
		var max int16
		for _, v := range part {
			if v < 0 {
				v = -v
			}
			if v > max {
				max = v
			}
		}
		return max
	}

	head := peak(s[:len(s)/4])
	tail := peak(s[3*len(s)/4:])
	if head <= tail {
		t.Errorf("envelope not decaying: head peak %d, tail peak %d", head, tail)
	}
	if head > 32767/2+1 {
		t.Errorf("head peak %d exceeds volume cap", head)
	}
}

func TestDisabledCuesAreSilentNoops(t *testing.T) {
	Disable()
	defer func() { disabled = false }()
	// Must not touch the audio backend at all.
	PlayStart()
	PlayEnd()
}
