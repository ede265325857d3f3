package llmcall

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/annotator/internal/llm"
)

// Recorder appends calls to a JSONL writer.
type Recorder struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
}

// NewRecorder creates a new call recorder. A nil writer disables recording.
func NewRecorder(w io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{logger: logger}
	if w != nil {
		r.enc = json.NewEncoder(w)
	}
	return r
}

// RecordCall writes a single call. Write failures are logged, not returned.
func (r *Recorder) RecordCall(call Call) {
	if r == nil || r.enc == nil {
		return // No writer configured, skip recording
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(call); err != nil {
		r.logger.Warn("failed to record model call", "id", call.ID, "error", err)
	}
}

// Wrap returns an Invoker that records every prompt sent through inv.
func (r *Recorder) Wrap(inv llm.Invoker, opts RecordOptions) llm.Invoker {
	return &recordingInvoker{inv: inv, rec: r, opts: opts}
}

type recordingInvoker struct {
	inv  llm.Invoker
	rec  *Recorder
	opts RecordOptions
}

func (ri *recordingInvoker) Invoke(ctx context.Context, prompts []string) ([]string, error) {
	start := time.Now()
	responses, err := ri.inv.Invoke(ctx, prompts)
	for _, c := range newBatch(prompts, responses, err, time.Since(start), ri.opts) {
		ri.rec.RecordCall(c)
	}
	return responses, err
}
