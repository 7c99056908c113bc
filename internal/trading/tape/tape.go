// Package tape keeps the append-only log of executed trades.
package tape

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
)

// Tape is an ordered, append-only trade log. The only bulk mutation is the
// wipe that follows a successful export.
type Tape struct {
	trades []model.Trade
}

// New returns an empty tape.
func New() *Tape {
	return &Tape{}
}

// Append records a trade at the end of the tape.
func (t *Tape) Append(trade model.Trade) {
	t.trades = append(t.trades, trade)
}

// Len returns the number of recorded trades.
func (t *Tape) Len() int { return len(t.trades) }

// Trades returns a copy of the tape, oldest first.
func (t *Tape) Trades() []model.Trade {
	out := make([]model.Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Recent returns up to n of the newest trades, newest first. A negative n
// returns none.
func (t *Tape) Recent(n int) []model.Trade {
	if n < 0 {
		n = 0
	}
	if n > len(t.trades) {
		n = len(t.trades)
	}
	out := make([]model.Trade, 0, n)
	for i := len(t.trades) - 1; i >= len(t.trades)-n; i-- {
		out = append(out, t.trades[i])
	}
	return out
}

// Export writes one "timestamp,price,quantity" line per trade, oldest first.
// With wipe set the tape is cleared, but only after every line was written.
func (t *Tape) Export(w io.Writer, wipe bool) error {
	bw := bufio.NewWriter(w)
	for _, trade := range t.trades {
		if _, err := fmt.Fprintf(bw, "%d,%s,%s\n", trade.Timestamp, trade.Price, trade.Quantity); err != nil {
			return fmt.Errorf("failed to write trade %s: %w", trade.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush tape: %w", err)
	}
	if wipe {
		t.trades = nil
	}
	return nil
}

// ExportFile writes the tape to path, truncating the file unless appendMode
// is set.
func (t *Tape) ExportFile(path string, appendMode, wipe bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create tape directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open tape file: %w", err)
	}
	if err := t.Export(f, false); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close tape file: %w", err)
	}
	if wipe {
		t.trades = nil
	}
	return nil
}
