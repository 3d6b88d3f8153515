package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/pkg/provider/stt"
	"github.com/MrWong99/wordwire/pkg/provider/tts"
	"github.com/MrWong99/wordwire/pkg/types"
)

// Translator is the slice of the translation orchestrator the pipeline needs.
// Implementations never return an error; a failed translation comes back as
// the original text with confidence 0.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) types.TranslationResult
}

// Saver persists one finished voice message. Implementations own their retry
// and fallback policy; an error means every path was exhausted.
type Saver interface {
	Save(ctx context.Context, msg *types.Message) error
}

// CoordinatorOption configures a [Coordinator].
type CoordinatorOption func(*Coordinator)

// WithSaver persists each completed cycle as an audio-kind message. Without a
// saver, cycles are delivered but not stored.
func WithSaver(s Saver) CoordinatorOption {
	return func(c *Coordinator) { c.saver = s }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithVoice sets the reference speaker sample and speaking rate passed to the
// synthesis backend.
func WithVoice(speakerWAV string, speed float64) CoordinatorOption {
	return func(c *Coordinator) {
		c.speakerWAV = speakerWAV
		c.speed = speed
	}
}

// Coordinator chains transcription, translation, and synthesis for one
// aggregated utterance.
//
// Stages degrade instead of failing: a failed translation delivers the
// transcript untranslated, and failed synthesis delivers the original
// recording. Only the transcription stage can abort a cycle — with no text
// there is nothing to translate or speak.
//
// Coordinator is safe for concurrent use; cycles for different streams run
// independently.
type Coordinator struct {
	stt        stt.Provider
	translator Translator
	tts        tts.Provider

	saver      Saver
	metrics    *observe.Metrics
	speakerWAV string
	speed      float64
}

// NewCoordinator creates a Coordinator around the three speech stages.
func NewCoordinator(sttP stt.Provider, translator Translator, ttsP tts.Provider, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		stt:        sttP,
		translator: translator,
		tts:        ttsP,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Process runs one utterance through the pipeline.
//
// A (nil, nil) return means the audio contained no recognizable speech; the
// cycle produced nothing and the caller emits no event. An error is returned
// only when transcription itself failed. Every other outcome is a usable
// result: Audio carries either synthesized speech or, when synthesis failed,
// the original recording.
func (c *Coordinator) Process(ctx context.Context, u Utterance) (*types.VoiceTranslationResult, error) {
	cycleStart := time.Now()
	c.metrics.VoiceCyclesInFlight.Add(ctx, 1)
	defer c.metrics.VoiceCyclesInFlight.Add(ctx, -1)

	// Stage 1: transcribe. The only stage whose failure aborts the cycle.
	sttStart := time.Now()
	transcript, err := c.stt.Transcribe(ctx, stt.Request{Audio: u.Audio, Language: u.SourceLanguage})
	c.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		c.metrics.RecordProviderError(ctx, "stt", "transcribe")
		c.metrics.RecordVoiceCycle(ctx, "failed")
		return nil, fmt.Errorf("voice: transcribe: %w", err)
	}

	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		c.metrics.RecordVoiceCycle(ctx, "empty")
		slog.Debug("utterance contained no speech",
			"user", u.UserID,
			"conversation", u.ConversationID)
		return nil, nil
	}

	// Stage 2: translate. Never a hard failure; the orchestrator substitutes
	// the original text at confidence 0 when every path errors.
	trStart := time.Now()
	tr := c.translator.Translate(ctx, text, u.TargetLanguage, transcript.Language)
	c.metrics.TranslateDuration.Record(ctx, time.Since(trStart).Seconds())
	c.metrics.RecordTranslation(ctx, tr.Outcome())

	result := &types.VoiceTranslationResult{
		TranslationResult: tr,
		Timestamp:         time.Now().UTC(),
	}

	// Stage 3: synthesize. On failure the listener gets the original
	// recording rather than silence.
	ttsStart := time.Now()
	audio, err := c.tts.Synthesize(ctx, tts.Request{
		Text:       tr.TranslatedText,
		Language:   tr.TargetLanguage,
		SpeakerWAV: c.speakerWAV,
		Speed:      c.speed,
	})
	c.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	if err != nil {
		c.metrics.RecordProviderError(ctx, "tts", "synthesize")
		slog.Warn("synthesis failed, substituting recorded audio",
			"conversation", u.ConversationID,
			"language", tr.TargetLanguage,
			"error", err)
		result.Audio = u.Audio
		result.SynthesisFailed = true
	} else {
		result.Audio = audio
	}

	c.persist(ctx, u, result)

	outcome := "ok"
	if result.SynthesisFailed {
		outcome = "degraded"
	}
	c.metrics.RecordVoiceCycle(ctx, outcome)
	c.metrics.VoiceCycleDuration.Record(ctx, time.Since(cycleStart).Seconds())
	return result, nil
}

// persist stores the cycle as an audio-kind message when a saver is
// configured. An utterance outside any conversation (the single-shot HTTP
// path) has nowhere to live and is delivered without being stored.
// Persistence failures are logged, not propagated: the listener already has
// the audio in hand.
func (c *Coordinator) persist(ctx context.Context, u Utterance, res *types.VoiceTranslationResult) {
	if c.saver == nil || u.ConversationID == "" {
		return
	}
	msg := &types.Message{
		ConversationID:    u.ConversationID,
		SenderID:          u.UserID,
		OriginalText:      res.OriginalText,
		TranslatedText:    res.TranslatedText,
		SourceLanguage:    res.SourceLanguage,
		TargetLanguage:    res.TargetLanguage,
		Kind:              types.MessageAudio,
		TranslationFailed: res.Failed(),
	}
	if err := c.saver.Save(ctx, msg); err != nil {
		slog.Error("voice message not persisted",
			"conversation", u.ConversationID,
			"sender", u.UserID,
			"error", err)
	}
}
