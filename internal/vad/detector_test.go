package vad_test

import (
	"bytes"
	"testing"

	"github.com/voxgate/voxgate/internal/vad"
	"github.com/voxgate/voxgate/pkg/audio"
)

// speechFrame returns one frame that classifies as speech (full-scale µ-law).
func speechFrame() []byte {
	return make([]byte, audio.FrameSize)
}

// silenceFrame returns one frame that classifies as silence.
func silenceFrame() []byte {
	return audio.Silence(1)
}

func feed(d *vad.Detector, frame []byte, n int) {
	for i := 0; i < n; i++ {
		d.Feed(frame)
	}
}

func TestDetector_EmitsUtteranceWithTrailingSilenceTrimmed(t *testing.T) {
	t.Parallel()

	var got []byte
	d := vad.New(vad.Config{
		OnUtterance: func(ulaw []byte) { got = ulaw },
	})

	feed(d, speechFrame(), 15)
	feed(d, silenceFrame(), vad.DefaultSilenceFrames)

	if got == nil {
		t.Fatal("no utterance emitted")
	}
	if len(got) != 15*audio.FrameSize {
		t.Errorf("utterance length = %d, want %d (trailing silence trimmed)", len(got), 15*audio.FrameSize)
	}
	if !bytes.Equal(got, bytes.Repeat(speechFrame(), 15)) {
		t.Error("utterance bytes do not match the speech frames fed")
	}
	if d.State() != vad.StateIdle {
		t.Errorf("state after emit = %v, want StateIdle", d.State())
	}
}

func TestDetector_SilenceOnlyNeverEmits(t *testing.T) {
	t.Parallel()

	emitted := false
	d := vad.New(vad.Config{
		OnUtterance: func([]byte) { emitted = true },
	})

	feed(d, silenceFrame(), 5*vad.DefaultSilenceFrames)

	if emitted {
		t.Error("silence-only stream emitted an utterance")
	}
}

func TestDetector_BargeInFiresOnceAtThreshold(t *testing.T) {
	t.Parallel()

	var fires []int
	frames := 0
	d := vad.New(vad.Config{
		OnBargeIn: func() { fires = append(fires, frames) },
	})

	for frames = 1; frames <= 30; frames++ {
		d.Feed(speechFrame())
	}

	if len(fires) != 1 {
		t.Fatalf("barge-in fired %d times, want exactly once", len(fires))
	}
	if fires[0] != vad.DefaultSpeechFrames {
		t.Errorf("barge-in fired at frame %d, want frame %d", fires[0], vad.DefaultSpeechFrames)
	}
}

func TestDetector_BargeInRefiresAfterSilenceBreak(t *testing.T) {
	t.Parallel()

	count := 0
	d := vad.New(vad.Config{
		OnBargeIn: func() { count++ },
	})

	feed(d, speechFrame(), vad.DefaultSpeechFrames)
	feed(d, silenceFrame(), 1)
	feed(d, speechFrame(), vad.DefaultSpeechFrames)

	if count != 2 {
		t.Errorf("barge-in fired %d times across two speech runs, want 2", count)
	}
}

func TestDetector_TrimToSubframeEmitsNothing(t *testing.T) {
	t.Parallel()

	emitted := false
	d := vad.New(vad.Config{
		SpeechFrames:  2,
		SilenceFrames: 3,
		OnUtterance:   func([]byte) { emitted = true },
	})

	// Only silence reaches the threshold: the trim covers the whole buffer.
	feed(d, silenceFrame(), 3)

	if emitted {
		t.Error("emitted an utterance shorter than one frame")
	}
}

func TestDetector_CustomThresholds(t *testing.T) {
	t.Parallel()

	var got []byte
	bargeIns := 0
	d := vad.New(vad.Config{
		SpeechFrames:  3,
		SilenceFrames: 2,
		OnBargeIn:     func() { bargeIns++ },
		OnUtterance:   func(ulaw []byte) { got = ulaw },
	})

	feed(d, speechFrame(), 4)
	feed(d, silenceFrame(), 2)

	if bargeIns != 1 {
		t.Errorf("barge-ins = %d, want 1", bargeIns)
	}
	if len(got) != 4*audio.FrameSize {
		t.Errorf("utterance length = %d, want %d", len(got), 4*audio.FrameSize)
	}
}

func TestDetector_ResetDiscardsBuffer(t *testing.T) {
	t.Parallel()

	emitted := false
	d := vad.New(vad.Config{
		OnUtterance: func([]byte) { emitted = true },
	})

	feed(d, speechFrame(), 5)
	d.Reset()
	if d.State() != vad.StateIdle {
		t.Errorf("state after reset = %v, want StateIdle", d.State())
	}
	feed(d, silenceFrame(), vad.DefaultSilenceFrames)

	if emitted {
		t.Error("reset buffer still produced an utterance")
	}
}
