package kb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultDelimiter separates id and description in description tables.
const DefaultDelimiter = ';'

// Descriptions is a file-backed entity id to description table.
type Descriptions struct {
	entries map[string]string
	logger  *slog.Logger
}

// NewDescriptions wraps an in-memory table.
func NewDescriptions(entries map[string]string, logger *slog.Logger) *Descriptions {
	if logger == nil {
		logger = slog.Default()
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return &Descriptions{entries: entries, logger: logger}
}

// LoadDescriptions reads a two-column delimited file (id, description).
func LoadDescriptions(path string, delim rune, logger *slog.Logger) (*Descriptions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptions: %w", err)
	}
	defer f.Close()
	return ReadDescriptions(f, delim, logger)
}

// ReadDescriptions parses a two-column delimited table. Rows with fewer than
// two columns are skipped; later rows override earlier ones.
func ReadDescriptions(r io.Reader, delim rune, logger *slog.Logger) (*Descriptions, error) {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	entries := make(map[string]string)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse descriptions: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		entries[id] = strings.TrimSpace(row[1])
	}
	return NewDescriptions(entries, logger), nil
}

// Get returns the description for id. Unknown ids log a warning and return
// UnavailableDescription.
func (d *Descriptions) Get(id string) string {
	desc, ok := d.entries[id]
	if !ok {
		d.logger.Warn("entity is not in provided descriptions", "entity_id", id)
		return UnavailableDescription
	}
	return desc
}

// Len returns the number of entries.
func (d *Descriptions) Len() int {
	return len(d.entries)
}
