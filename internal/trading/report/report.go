// Package report renders book state for people and for tooling.
package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Aidin1998/pincex_matching/internal/trading/engine"
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"gopkg.in/yaml.v3"
)

// DefaultRecentTrades is how many trades the text report lists.
const DefaultRecentTrades = 5

// WriteText renders both sides best-first followed by the given trades.
func WriteText(w io.Writer, snap engine.Snapshot, recent []model.Trade) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "------ buys -------")
	writeLevels(bw, snap.Bids)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "------ sells -------")
	writeLevels(bw, snap.Asks)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "------ Trades ------")
	for _, t := range recent {
		fmt.Fprintf(bw, "%s @ %s (%d)\n", t.Quantity, t.Price, t.Timestamp)
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

func writeLevels(w io.Writer, levels []engine.LevelSnapshot) {
	for _, lvl := range levels {
		for _, o := range lvl.Orders {
			fmt.Fprintf(w, "%s @ %s t=%d id=%s owner=%s\n", o.Quantity, o.Price, o.Timestamp, o.ID, o.OwnerID)
		}
	}
}

// Depth is the YAML form of an aggregated book.
type Depth struct {
	Instrument string       `yaml:"instrument"`
	Clock      int64        `yaml:"clock"`
	BestBid    string       `yaml:"best_bid,omitempty"`
	BestAsk    string       `yaml:"best_ask,omitempty"`
	Spread     string       `yaml:"spread,omitempty"`
	Bids       []DepthLevel `yaml:"bids"`
	Asks       []DepthLevel `yaml:"asks"`
}

// DepthLevel aggregates one price level.
type DepthLevel struct {
	Price  string `yaml:"price"`
	Volume string `yaml:"volume"`
	Orders int    `yaml:"orders"`
}

// NewDepth aggregates a snapshot.
func NewDepth(instrument string, snap engine.Snapshot) Depth {
	d := Depth{
		Instrument: instrument,
		Clock:      int64(snap.Clock),
		Bids:       depthLevels(snap.Bids),
		Asks:       depthLevels(snap.Asks),
	}
	if len(snap.Bids) > 0 {
		d.BestBid = snap.Bids[0].Price.String()
	}
	if len(snap.Asks) > 0 {
		d.BestAsk = snap.Asks[0].Price.String()
	}
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		d.Spread = snap.Asks[0].Price.Sub(snap.Bids[0].Price).String()
	}
	return d
}

func depthLevels(levels []engine.LevelSnapshot) []DepthLevel {
	out := make([]DepthLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, DepthLevel{
			Price:  lvl.Price.String(),
			Volume: lvl.Volume.String(),
			Orders: len(lvl.Orders),
		})
	}
	return out
}

// WriteYAML encodes the depth of snap.
func WriteYAML(w io.Writer, instrument string, snap engine.Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDepth(instrument, snap)); err != nil {
		return fmt.Errorf("failed to encode depth: %w", err)
	}
	return enc.Close()
}

// ReadYAML decodes a depth document written by WriteYAML.
func ReadYAML(r io.Reader) (Depth, error) {
	var d Depth
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return Depth{}, fmt.Errorf("failed to decode depth: %w", err)
	}
	return d, nil
}
