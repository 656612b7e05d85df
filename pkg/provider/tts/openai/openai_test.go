package openai_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxgate/voxgate/pkg/audio"
	"github.com/voxgate/voxgate/pkg/provider/tts/openai"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := openai.New("", "tts-1"); err == nil {
		t.Error("New with empty api key succeeded")
	}
	if s, err := openai.New("sk-test", ""); err != nil || s == nil {
		t.Errorf("New with empty model = (%v, %v), want tts-1 default", s, err)
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	// 24 kHz constant-amplitude WAV, 240 samples (10 ms).
	pcm := make([]byte, 480)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(1000)))
	}
	wav := audio.WrapWAV(pcm, 24000)

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	t.Cleanup(srv.Close)

	s, err := openai.New("sk-test", "tts-1",
		openai.WithBaseURL(srv.URL),
		openai.WithVoice("nova"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ulaw, err := s.Synthesize(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	// 240 samples at 24 kHz resample to 80 samples at 8 kHz, one µ-law byte each.
	if len(ulaw) != 80 {
		t.Errorf("µ-law length = %d, want 80", len(ulaw))
	}

	if gotBody["input"] != "hello caller" {
		t.Errorf("request input = %v", gotBody["input"])
	}
	if gotBody["voice"] != "nova" {
		t.Errorf("request voice = %v", gotBody["voice"])
	}
	if gotBody["response_format"] != "wav" {
		t.Errorf("request response_format = %v", gotBody["response_format"])
	}
}

func TestSynthesize_BadAudioRejected(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("not a wav stream"))
	}))
	t.Cleanup(srv.Close)

	s, err := openai.New("sk-test", "tts-1", openai.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil {
		t.Error("Synthesize succeeded on malformed audio, want error")
	}
}
