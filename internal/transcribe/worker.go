// Package transcribe drains the audio-attachment backlog through the
// speech-to-text engine. The worker is a pausable polling loop: it runs while
// there is work, stops when the backlog is empty, and wakes again when a new
// audio message is stored.
package transcribe

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/asr"
	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/store"
)

// Worker owns the transcription loop. At most one loop instance runs per
// process; Start while running is a no-op, Pause cancels any in-flight
// transcription subprocess and waits for the loop to exit.
type Worker struct {
	db        *store.DB
	tr        asr.Transcriber
	bus       *bus.Bus
	log       *zap.Logger
	threshold float64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	unsub  func()
	closed chan struct{}
}

// NewWorker creates the transcription worker.
func NewWorker(db *store.DB, tr asr.Transcriber, b *bus.Bus, threshold float64, log *zap.Logger) *Worker {
	return &Worker{
		db:        db,
		tr:        tr,
		bus:       b,
		log:       log,
		threshold: threshold,
	}
}

// Watch subscribes to audio-stored events and starts the loop whenever one
// arrives. Call once at daemon startup; Close undoes it.
func (w *Worker) Watch() {
	ch, unsub := w.bus.Subscribe(bus.KindAudioStored, 16)
	w.unsub = unsub
	w.closed = make(chan struct{})
	go func() {
		defer close(w.closed)
		for range ch {
			w.Start()
		}
	}()
}

// Close stops the bus watcher and pauses the loop.
func (w *Worker) Close() {
	if w.unsub != nil {
		w.unsub()
		<-w.closed
	}
	w.Pause()
}

// Start launches the processing loop if it is not already running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
}

// Pause signals the loop to stop and kills any in-flight transcription. A
// run killed mid-flight leaves no transcript row.
func (w *Worker) Pause() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is currently active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.cancel = nil
		w.mu.Unlock()
		close(done)
	}()

	// The cursor advances past attachments whose transcription failed or
	// scored below the threshold, so one bad file cannot stall the backlog.
	var cursor int64
	for ctx.Err() == nil {
		att, err := w.db.NextAudioWithoutTranscript(cursor)
		if err != nil {
			w.log.Error("failed to read audio backlog", zap.Error(err))
			return
		}
		if att == nil {
			return
		}
		if !w.processOne(ctx, att) {
			cursor = att.ID
		}
	}
}

// processOne transcribes one attachment. It reports whether a transcript row
// was committed.
func (w *Worker) processOne(ctx context.Context, att *store.Attachment) bool {
	w.log.Info("transcribing audio",
		zap.String("message_id", att.MessageID),
		zap.String("file", att.FilePath))

	res, err := w.tr.Transcribe(ctx, att.FilePath)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.log.Warn("transcription failed", zap.String("message_id", att.MessageID), zap.Error(err))
		return false
	}
	if res.Text == "" || res.Confidence < w.threshold {
		w.log.Info("transcription below threshold",
			zap.String("message_id", att.MessageID),
			zap.Float64("confidence", res.Confidence))
		return false
	}

	if err := w.db.InsertTranscript(&store.Transcript{
		MessageID:          att.MessageID,
		Text:               res.Text,
		Engine:             w.tr.Engine(),
		Language:           res.Language,
		LanguageConfidence: res.LanguageConfidence,
	}); err != nil {
		w.log.Error("failed to store transcript", zap.String("message_id", att.MessageID), zap.Error(err))
		return false
	}
	return true
}
