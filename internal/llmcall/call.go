// Package llmcall provides model call recording and querying for traceability.
// Every prompt sent to a model is recorded with its template key, response, and timing.
package llmcall

import (
	"time"

	"github.com/google/uuid"
)

// Call represents one recorded prompt/response pair.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Batch grouping: prompts sent in one Invoke share a BatchID and latency.
	BatchID string `json:"batch_id"`
	Index   int    `json:"index"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Prompt traceability
	TaskKind   string `json:"task_kind,omitempty"`
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"` // Hash of the exact template used

	// Model info
	Model string `json:"model,omitempty"`

	Prompt   string `json:"prompt"`
	Response string `json:"response,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording calls.
type RecordOptions struct {
	TaskKind   string
	PromptKey  string
	PromptHash string
	Model      string
}

// newBatch creates one Call per prompt. A nil responses slice marks the batch failed.
func newBatch(prompts, responses []string, err error, latency time.Duration, opts RecordOptions) []Call {
	batchID := uuid.New().String()
	now := time.Now()
	calls := make([]Call, len(prompts))
	for i, p := range prompts {
		c := Call{
			ID:         uuid.New().String(),
			BatchID:    batchID,
			Index:      i,
			Timestamp:  now,
			LatencyMs:  int(latency.Milliseconds()),
			TaskKind:   opts.TaskKind,
			PromptKey:  opts.PromptKey,
			PromptHash: opts.PromptHash,
			Model:      opts.Model,
			Prompt:     p,
			Success:    err == nil,
		}
		if err != nil {
			c.Error = err.Error()
		} else if i < len(responses) {
			c.Response = responses[i]
		}
		calls[i] = c
	}
	return calls
}
