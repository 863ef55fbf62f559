// Package audit appends ingested records to a flat CSV file.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/Minionjack/Trade-info-scraper/model"
)

type CSV struct {
	mu   sync.Mutex
	path string
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Path() string { return c.path }

// Append writes one row, preceded by the header when the file is new or empty.
func (c *CSV) Append(r model.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(model.Columns); err != nil {
			return fmt.Errorf("write audit header: %w", err)
		}
	}
	if err := w.Write(r.Row()); err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}
