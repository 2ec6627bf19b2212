package notify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"sentrycam-go/internal/platform/errors"
	"sentrycam-go/internal/platform/logging"
)

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// EdgeSynthesizer produces speech through the Edge TTS service.
type EdgeSynthesizer struct {
	voice string
}

// NewEdgeSynthesizer creates a synthesizer with the given neural voice.
func NewEdgeSynthesizer(voice string) *EdgeSynthesizer {
	if voice == "" {
		voice = "en-US-AriaNeural"
	}
	return &EdgeSynthesizer{voice: voice}
}

// Synthesize renders text to MP3 bytes.
func (s *EdgeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	const op = "notify.EdgeSynthesizer.Synthesize"

	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(s.voice))
	if err != nil {
		return nil, errors.Wrap(errors.KindNotify, op, "create synthesizer", err)
	}

	audio, err := communicate.Stream()
	if err != nil {
		return nil, errors.Wrap(errors.KindNotify, op, "synthesis failed", err)
	}
	return audio, nil
}

// LocalSpeaker speaks alerts through the host's audio output. It writes the
// synthesized MP3 to disk and hands it to an external player command.
type LocalSpeaker struct {
	synth     Synthesizer
	playerCmd string
	audioDir  string
	logger    *logging.Logger
}

// NewLocalSpeaker creates the local speaker backend.
func NewLocalSpeaker(synth Synthesizer, playerCmd, audioDir string, logger *logging.Logger) *LocalSpeaker {
	if playerCmd == "" {
		playerCmd = "mpg123"
	}
	if audioDir == "" {
		audioDir = os.TempDir()
	}
	return &LocalSpeaker{
		synth:     synth,
		playerCmd: playerCmd,
		audioDir:  audioDir,
		logger:    logger,
	}
}

// Name returns the target identifier for this backend.
func (s *LocalSpeaker) Name() string { return "local_speaker" }

// Send synthesizes the message and plays it. The audio file is removed
// after playback.
func (s *LocalSpeaker) Send(ctx context.Context, message string) error {
	const op = "notify.LocalSpeaker.Send"

	audio, err := s.synth.Synthesize(ctx, message)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return errors.Wrap(errors.KindNotify, op, "create audio directory", err)
	}

	path := filepath.Join(s.audioDir, fmt.Sprintf("alert_%d.mp3", time.Now().UnixNano()))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return errors.Wrap(errors.KindNotify, op, "write audio file", err)
	}
	defer os.Remove(path)

	if duration, err := mp3Duration(audio); err == nil {
		s.logger.DebugTag("NOTIFY", "playing %s (%.1fs)", filepath.Base(path), duration.Seconds())
	}

	cmd := exec.CommandContext(ctx, s.playerCmd, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(errors.KindNotify, op,
			fmt.Sprintf("player %s failed: %s", s.playerCmd, bytes.TrimSpace(out)), err)
	}

	return nil
}

// Healthy reports whether the player binary is on PATH.
func (s *LocalSpeaker) Healthy(context.Context) bool {
	_, err := exec.LookPath(s.playerCmd)
	return err == nil
}

// mp3Duration decodes the MP3 header chain to compute playback length.
func mp3Duration(audio []byte) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return 0, err
	}

	// Length is PCM bytes: 4 bytes per sample at the decoder's sample rate.
	samples := decoder.Length() / 4
	seconds := float64(samples) / float64(decoder.SampleRate())
	return time.Duration(seconds * float64(time.Second)), nil
}
