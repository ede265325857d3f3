package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/annotator/internal/config"
	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/kb"
	"github.com/jackzampolin/annotator/internal/pipeline"
	"github.com/jackzampolin/annotator/internal/task"
)

// buildAnnotator creates the configured task. A --task name restores saved
// state over the configured defaults and takes the saved kind when recorded.
func buildAnnotator(cfg *config.Config) (pipeline.Annotator, error) {
	tc, err := cfg.Task.TaskConfig()
	if err != nil {
		return nil, err
	}

	var (
		dir      string
		switched bool
	)
	if taskName != "" {
		if dir, err = homes.TaskDir(taskName); err != nil {
			return nil, err
		}
		if !task.Exists(dir) {
			return nil, fmt.Errorf("task %q not found in %s", taskName, homes.TasksPath())
		}
		kind, err := task.SavedKind(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load task %q: %w", taskName, err)
		}
		if kind != "" && kind != tc.Kind {
			logger.Debug("using saved task kind", "name", taskName, "kind", kind, "configured", tc.Kind)
			tc.Kind = kind
			switched = true
		}
	}

	deps := pipeline.Deps{Logger: logger}
	if tc.Kind == task.KindEntityLinker {
		if deps.KB, deps.Descriptions, err = loadKB(cfg.KB); err != nil {
			return nil, err
		}
	}

	a, err := pipeline.DefaultRegistry().Build(tc, deps)
	if err != nil {
		return nil, err
	}

	if cfg.Task.ExamplesPath != "" && !switched {
		if err := a.LoadPromptExamples(cfg.Task.ExamplesPath); err != nil {
			return nil, err
		}
	}

	// Channels excluded on save keep the configured values.
	if dir != "" {
		if err := a.FromDisk(dir); err != nil {
			return nil, fmt.Errorf("failed to load task %q: %w", taskName, err)
		}
		logger.Debug("loaded saved task", "name", taskName, "kind", a.Kind())
	}
	return a, nil
}

func loadKB(c config.KBCfg) (kb.KnowledgeBase, kb.DescriptionSource, error) {
	if c.Path == "" {
		return nil, nil, fmt.Errorf("entity_linker requires kb.path")
	}
	base, err := kb.LoadMemoryKB(c.Path)
	if err != nil {
		return nil, nil, err
	}
	if c.DescriptionsPath == "" {
		return base, nil, nil
	}
	delim, err := c.DelimiterRune()
	if err != nil {
		return nil, nil, err
	}
	descs, err := kb.LoadDescriptions(c.DescriptionsPath, delim, logger)
	if err != nil {
		return nil, nil, err
	}
	return base, descs, nil
}

// readDocs reads documents from a .jsonl file of records, or treats any other
// file as a single plain-text document. "-" reads stdin.
func readDocs(path string, tok doc.Tokenizer) ([]*doc.Doc, error) {
	r, closeFn, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if path == "-" || strings.EqualFold(filepath.Ext(path), ".jsonl") {
		docs, err := doc.ReadJSONL(r, tok)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return docs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return []*doc.Doc{doc.New(string(data), tok)}, nil
}

// readResponses reads one JSON string per non-empty line.
func readResponses(path string) ([]string, error) {
	r, closeFn, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("%s line %d: responses must be JSON strings: %w", path, line, err)
		}
		out = append(out, s)
	}
	return out, scanner.Err()
}

func open(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func records(docs []*doc.Doc) []doc.Record {
	out := make([]doc.Record, len(docs))
	for i, d := range docs {
		out[i] = d.Record()
	}
	return out
}
