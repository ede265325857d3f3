package llmcall

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// QueryFilter specifies filters for listing recorded calls.
type QueryFilter struct {
	TaskKind  string
	PromptKey string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

func (f QueryFilter) match(c Call) bool {
	if f.TaskKind != "" && c.TaskKind != f.TaskKind {
		return false
	}
	if f.PromptKey != "" && c.PromptKey != f.PromptKey {
		return false
	}
	if f.Model != "" && c.Model != f.Model {
		return false
	}
	if f.After != nil && !c.Timestamp.After(*f.After) {
		return false
	}
	if f.Before != nil && !c.Timestamp.Before(*f.Before) {
		return false
	}
	if f.Success != nil && c.Success != *f.Success {
		return false
	}
	return true
}

// List reads a JSONL call log and returns the calls matching the filter, in file order.
func List(r io.Reader, f QueryFilter) ([]Call, error) {
	var calls []Call
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var c Call
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !f.match(c) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		calls = append(calls, c)
		if f.Limit > 0 && len(calls) >= f.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return calls, nil
}
