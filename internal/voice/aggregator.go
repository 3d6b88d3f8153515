// Package voice turns streams of microphone fragments into translated speech.
//
// The [Aggregator] debounces incoming audio fragments per speaker and
// conversation: fragments are queued until the stream pauses for one debounce
// window, then sorted by sequence number, concatenated into a single
// utterance, and handed to the sink — typically a [Coordinator], which runs
// the utterance through transcription, translation, and synthesis.
//
// Example:
//
//	coord := voice.NewCoordinator(whisper, orchestrator, coqui)
//	agg := voice.NewAggregator(func(u voice.Utterance) {
//	    res, err := coord.Process(ctx, u)
//	    ...
//	})
//	defer agg.Close()
//
//	agg.Add(voice.Chunk{UserID: "alice", ConversationID: "c1", Sequence: 1, Data: frame})
package voice

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// defaultWindow is the debounce window: a stream flushes after this much
// silence. Long enough to bridge the gaps between consecutive fragments of
// one utterance, short enough that the listener is not left waiting.
const defaultWindow = 3 * time.Second

// Chunk is one audio fragment of a speaker's stream.
type Chunk struct {
	// UserID is the speaker whose microphone produced the fragment.
	UserID string

	// ConversationID scopes the stream; the same speaker talking in two
	// conversations produces two independent streams.
	ConversationID string

	// TargetUserID is the participant who will receive the translated speech.
	TargetUserID string

	// TargetLanguage is the language the utterance is translated into.
	TargetLanguage string

	// Sequence orders fragments within the stream. Fragments may arrive out
	// of order; the flush sorts by this number.
	Sequence int

	// Data is the raw audio payload of the fragment.
	Data []byte
}

// Utterance is one debounce window's worth of audio: every queued fragment of
// one stream, sorted by sequence and concatenated.
type Utterance struct {
	// UserID is the speaker.
	UserID string

	// ConversationID scopes the utterance.
	ConversationID string

	// TargetUserID receives the translated speech. Taken from the most
	// recently queued fragment.
	TargetUserID string

	// TargetLanguage is the translation target. Taken from the most recently
	// queued fragment.
	TargetLanguage string

	// SourceLanguage optionally pins the spoken language for transcription.
	// Empty lets the backend auto-detect. Streamed fragments never set it;
	// only the single-shot HTTP path does.
	SourceLanguage string

	// Audio is the concatenated fragment payloads in sequence order.
	Audio []byte

	// Fragments is the number of fragments concatenated into Audio.
	Fragments int
}

// streamKey identifies one speaker's fragment stream within one conversation.
type streamKey struct {
	userID         string
	conversationID string
}

// stream is the mutable per-key state. Guarded by Aggregator.mu; the chunks
// slice is handed off wholesale at flush time, never mutated concurrently.
type stream struct {
	chunks   []Chunk
	bytes    int // sum of len(Data) across chunks
	task     Task
	inFlight bool
}

// AggregatorOption configures an [Aggregator].
type AggregatorOption func(*Aggregator)

// WithWindow overrides the debounce window. Default is 3s.
func WithWindow(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.window = d }
}

// WithScheduler substitutes the timer implementation, letting tests fire
// debounce windows deterministically.
func WithScheduler(s Scheduler) AggregatorOption {
	return func(a *Aggregator) { a.sched = s }
}

// WithMaxBuffer caps the audio bytes buffered per stream. A fragment that
// would push its stream past the cap is dropped; the audio already queued
// still flushes when the window expires. Zero means unlimited.
func WithMaxBuffer(n int) AggregatorOption {
	return func(a *Aggregator) { a.maxBuffer = n }
}

// Aggregator debounces audio fragments into utterances.
//
// Per stream, at most one flush runs at a time: a debounce window that expires
// while a flush is still running leaves the queued fragments alone, and the
// finishing flush re-arms the window so they go out in the next cycle. All
// methods are safe for concurrent use.
type Aggregator struct {
	sink      func(Utterance)
	sched     Scheduler
	window    time.Duration
	maxBuffer int

	mu      sync.Mutex
	streams map[streamKey]*stream
	closed  bool

	// wg tracks running flushes so Close can wait them out.
	wg sync.WaitGroup
}

// NewAggregator creates an Aggregator that delivers each flushed utterance to
// sink. The sink runs on the timer's goroutine; a slow sink delays only its
// own stream's next cycle.
func NewAggregator(sink func(Utterance), opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		sink:    sink,
		sched:   TimerScheduler{},
		window:  defaultWindow,
		streams: make(map[streamKey]*stream),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add queues one fragment and restarts the stream's debounce window.
// Fragments added after Close are dropped.
func (a *Aggregator) Add(chunk Chunk) {
	key := streamKey{userID: chunk.UserID, conversationID: chunk.ConversationID}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	s, ok := a.streams[key]
	if a.maxBuffer > 0 {
		buffered := 0
		if ok {
			buffered = s.bytes
		}
		if buffered+len(chunk.Data) > a.maxBuffer {
			// Dropped fragments do not restart the window either; whatever
			// is queued flushes on schedule.
			slog.Warn("voice fragment dropped, stream buffer full",
				"user", chunk.UserID,
				"conversation", chunk.ConversationID,
				"buffered", buffered,
				"limit", a.maxBuffer)
			return
		}
	}
	if !ok {
		s = &stream{}
		a.streams[key] = s
	}
	s.chunks = append(s.chunks, chunk)
	s.bytes += len(chunk.Data)

	if s.task != nil {
		s.task.Cancel()
	}
	s.task = a.sched.AfterFunc(a.window, func() { a.flush(key) })
}

// Clear drops the stream for (userID, conversationID): the pending window is
// cancelled, queued fragments are discarded, and a flush still running for the
// stream is orphaned — it finishes its sink call but re-arms nothing. Invoked
// on call teardown; audio not yet flushed at that point is intentionally lost.
func (a *Aggregator) Clear(userID, conversationID string) {
	key := streamKey{userID: userID, conversationID: conversationID}

	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.streams[key]
	if !ok {
		return
	}
	if s.task != nil {
		s.task.Cancel()
	}
	delete(a.streams, key)
}

// Close cancels every pending window, stops accepting fragments, and waits
// for running flushes to finish.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	for _, s := range a.streams {
		if s.task != nil {
			s.task.Cancel()
		}
	}
	a.streams = make(map[streamKey]*stream)
	a.mu.Unlock()

	a.wg.Wait()
}

// flush runs when a stream's debounce window expires. It assembles the queued
// fragments into an [Utterance] and runs the sink, unless a flush for the same
// stream is still in flight — then the fragments stay queued for the next
// cycle.
func (a *Aggregator) flush(key streamKey) {
	a.mu.Lock()
	s, ok := a.streams[key]
	if !ok || a.closed {
		a.mu.Unlock()
		return
	}
	s.task = nil
	if s.inFlight || len(s.chunks) == 0 {
		a.mu.Unlock()
		return
	}
	s.inFlight = true
	chunks := s.chunks
	s.chunks = nil
	s.bytes = 0
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	a.sink(assemble(chunks))

	a.mu.Lock()
	defer a.mu.Unlock()
	// The stream may have been cleared (and possibly recreated) while the
	// sink ran; only the stream this flush started from is ours to re-arm.
	if cur, ok := a.streams[key]; ok && cur == s {
		s.inFlight = false
		if len(s.chunks) > 0 && s.task == nil && !a.closed {
			s.task = a.sched.AfterFunc(a.window, func() { a.flush(key) })
		}
	}
}

// assemble sorts chunks by sequence and concatenates their payloads. Equal
// sequence numbers keep arrival order. Target metadata comes from the most
// recently queued chunk.
func assemble(chunks []Chunk) Utterance {
	last := chunks[len(chunks)-1]

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Sequence < chunks[j].Sequence
	})

	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.Data)
	}

	slog.Debug("utterance assembled",
		"user", last.UserID,
		"conversation", last.ConversationID,
		"fragments", len(chunks),
		"bytes", buf.Len())

	return Utterance{
		UserID:         last.UserID,
		ConversationID: last.ConversationID,
		TargetUserID:   last.TargetUserID,
		TargetLanguage: last.TargetLanguage,
		Audio:          buf.Bytes(),
		Fragments:      len(chunks),
	}
}
