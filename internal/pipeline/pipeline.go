// Package pipeline is the async orchestrator (spec §4.9): it drives the
// Idle/Recording/Processing state machine and wires capture → VAD →
// STT → transform → injector together with bounded, backpressured
// channels so a busy STT worker never stalls the real-time audio callback.
package pipeline

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agalue/swictation/internal/inject"
	"github.com/agalue/swictation/internal/metrics"
	"github.com/agalue/swictation/internal/transform"
	"github.com/agalue/swictation/internal/vad"
)

// State is one of the three positions in spec §4.9's state diagram.
type State int

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// drainTimeout bounds how long StopRecording waits for the VAD/STT workers
// to finish their current work before forcing a transition to Idle (spec §5).
const drainTimeout = 10 * time.Second

// maxConsecutiveInferenceFailures triggers an automatic session fault per
// spec §7 ("if three consecutive segments fail, the session transitions to
// Idle and surfaces a fault").
const maxConsecutiveInferenceFailures = 3

// chunkQueueSize and segmentQueueSize are the bounded channel depths that
// implement spec §4.9's backpressure chain: a full segment queue blocks the
// VAD worker, which in turn stops draining chunks, which lets the audio
// ring buffer absorb (and eventually drop, with its own counter) rather
// than ever blocking the real-time audio callback.
const (
	chunkQueueSize   = 8
	segmentQueueSize = 4
)

// Injector is a thinner view of inject.Injector so tests can fake it
// without pulling in real delivery.
type Injector = inject.Injector

// The following narrow interfaces capture only what the pipeline calls on
// its collaborators. *audio.Capturer, *vad.Detector, *stt.Engine, and
// *transform.Transform all satisfy them structurally; tests substitute
// fakes so the orchestration logic is exercised without real devices,
// ONNX sessions, or OS text injection.

type capturer interface {
	SetChunkCallback(func(samples []float32))
	Start() error
	Stop()
	Close()
}

type detector interface {
	ProcessAudio(samples []float32) (vad.Result, error)
	Flush() vad.Result
	Close()
}

type recognizer interface {
	Transcribe(samples []float32) (string, error)
	Close()
}

type rewriter interface {
	Apply(text string) []transform.TranscriptionEvent
	Reset()
}

// session holds the channels and workers that exist only between
// StartRecording and the matching drain-to-Idle. id correlates the
// session's log lines across the VAD and STT workers.
type session struct {
	id       string
	chunks   chan []float32
	segments chan vad.Result
	group    *errgroup.Group
}

// Pipeline owns every long-lived component and arbitrates the state
// machine. It is constructed once per daemon run; model handles outlive
// individual recording sessions (spec §5).
type Pipeline struct {
	capturer  capturer
	detector  detector
	engine    recognizer
	transform rewriter
	injector  Injector
	metrics   metrics.Recorder

	mu      sync.Mutex
	state   State
	current *session

	faults chan error
}

// New assembles a Pipeline from its already-constructed collaborators. None
// of them are started; call StartRecording to open the capture device and
// begin a session. Pass a *audio.Capturer, *vad.Detector, *stt.Engine, and
// *transform.Transform for the real daemon; tests may substitute fakes
// satisfying the same narrow method sets.
func New(c capturer, det detector, eng recognizer, tr rewriter, injector Injector, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Pipeline{
		capturer:  c,
		detector:  det,
		engine:    eng,
		transform: tr,
		injector:  injector,
		metrics:   rec,
		faults:    make(chan error, 4),
	}
}

// State reports the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Faults is a non-blocking stream of session-ending errors (e.g. three
// consecutive inference failures) for a control plane to surface to the user.
func (p *Pipeline) Faults() <-chan error { return p.faults }

// StartRecording transitions Idle -> Recording: it starts the capture
// device and the VAD/STT workers for a fresh session.
func (p *Pipeline) StartRecording() error {
	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: cannot start recording from state %s", p.state)
	}

	group := &errgroup.Group{}
	sess := &session{
		id:       uuid.NewString(),
		chunks:   make(chan []float32, chunkQueueSize),
		segments: make(chan vad.Result, segmentQueueSize),
		group:    group,
	}
	p.current = sess
	p.state = Recording
	p.mu.Unlock()

	p.capturer.SetChunkCallback(func(samples []float32) {
		cp := append([]float32(nil), samples...)
		sess.chunks <- cp
	})

	group.Go(func() error { return p.vadWorker(sess) })
	group.Go(func() error { return p.sttWorker(sess) })

	if err := p.capturer.Start(); err != nil {
		p.mu.Lock()
		p.state = Idle
		p.current = nil
		p.mu.Unlock()
		close(sess.chunks)
		_ = group.Wait()
		return err
	}

	log.Printf("🎙️  recording started (session %s)", sess.id)
	return nil
}

// StopRecording transitions Recording -> Processing -> Idle: capture stops
// immediately, then the VAD is flushed and any in-flight segment completes
// STT and Transform before the state returns to Idle (spec §4.9). It is
// idempotent and safe to call from any state other than Recording (a no-op).
func (p *Pipeline) StopRecording() error {
	p.mu.Lock()
	if p.state != Recording {
		p.mu.Unlock()
		return nil
	}
	sess := p.current
	p.state = Processing
	p.mu.Unlock()

	p.capturer.Stop()
	close(sess.chunks)

	done := make(chan struct{})
	go func() {
		_ = sess.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		log.Printf("⚠️  session %s drain timed out, returning to idle; workers keep processing remaining queued segments", sess.id)
		p.metrics.Incr("drain_timeout")
	}

	p.transform.Reset()

	p.mu.Lock()
	p.state = Idle
	p.current = nil
	p.mu.Unlock()

	log.Printf("🛑 recording stopped (session %s)", sess.id)
	return nil
}

// Close releases every owned resource. Call only after the pipeline is Idle.
func (p *Pipeline) Close() {
	p.capturer.Close()
	p.detector.Close()
	p.engine.Close()
}

// vadWorker drains audio chunks, runs Silero VAD over them, and forwards
// closed utterances to the STT worker. It exits once the chunk channel is
// closed and drained, flushing any in-progress utterance first.
func (p *Pipeline) vadWorker(sess *session) error {
	defer close(sess.segments)

	for chunk := range sess.chunks {
		start := time.Now()
		result, err := p.detector.ProcessAudio(chunk)
		p.metrics.Record("vad", time.Since(start))
		if err != nil {
			log.Printf("swictation: session %s vad error: %v", sess.id, err)
			p.metrics.Incr("vad_error")
			continue
		}
		if result.Speech {
			sess.segments <- result
		}
	}

	if final := p.detector.Flush(); final.Speech {
		sess.segments <- final
	}
	return nil
}

// sttWorker drains closed segments, transcribes, rewrites, and injects each
// one in order. After three consecutive inference failures it surfaces a
// fault and asynchronously ends the session (spec §7).
func (p *Pipeline) sttWorker(sess *session) error {
	failures := 0
	faulted := false

	for seg := range sess.segments {
		if faulted {
			continue // drain quietly; StopRecording already in flight
		}

		start := time.Now()
		text, err := p.engine.Transcribe(seg.Samples)
		p.metrics.Record("stt", time.Since(start))

		if err != nil {
			failures++
			p.metrics.Incr("stt_inference_error")
			log.Printf("swictation: session %s stt inference error (%d consecutive): %v", sess.id, failures, err)
			if failures >= maxConsecutiveInferenceFailures {
				faulted = true
				p.metrics.Incr("session_fault")
				p.reportFault(fmt.Errorf("stt: %d consecutive inference failures, ending session %s", failures, sess.id))
				go func() { _ = p.StopRecording() }()
			}
			continue
		}
		failures = 0

		if text == "" {
			continue
		}

		for _, event := range p.transform.Apply(text) {
			if err := p.injector.Inject(event); err != nil {
				p.metrics.Incr("injector_error")
				log.Printf("swictation: session %s injector error: %v", sess.id, err)
			}
		}
	}
	return nil
}

func (p *Pipeline) reportFault(err error) {
	select {
	case p.faults <- err:
	default:
		log.Printf("swictation: fault channel full, dropping: %v", err)
	}
}
