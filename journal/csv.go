package journal

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	tradeHeader  = []string{"id", "time", "symbol", "side", "type", "quantity", "price", "limit_price", "stop_price", "status", "commission", "total", "realized_pl"}
	equityHeader = []string{"time", "cash", "positions_value", "total_value", "total_pl"}
)

// CSVJournal appends trades and equity snapshots to two CSV files.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

// NewCSV opens both files for appending. A header row is written only
// to a file that is empty.
func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, tw, err := openCSV(tradesPath, tradeHeader)
	if err != nil {
		return nil, err
	}
	ef, ew, err := openCSV(equityPath, equityHeader)
	if err != nil {
		tf.Close()
		return nil, err
	}
	return &CSVJournal{tw, ew, tf, ef}, nil
}

func openCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSVJournal) RecordTrade(t Trade) error {
	if err := j.trades.Write(tradeRow(t)); err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	if err := j.equity.Write(equityRow(e)); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	if err := j.ef.Close(); err != nil {
		return err
	}
	return nil
}

// WriteCSV exports trades with a header row.
func WriteCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write(tradeRow(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func tradeRow(t Trade) []string {
	return []string{
		t.ID,
		t.Time.UTC().Format(time.RFC3339Nano),
		t.Symbol,
		string(t.Side),
		string(t.Type),
		strconv.FormatInt(t.Quantity, 10),
		t.Price.String(),
		optional(t.LimitPrice),
		optional(t.StopPrice),
		string(t.Status),
		t.Commission.String(),
		t.Total.String(),
		t.RealizedPL.String(),
	}
}

func equityRow(e EquitySnapshot) []string {
	return []string{
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Cash.String(),
		e.PositionsValue.String(),
		e.TotalValue.String(),
		e.TotalPL.String(),
	}
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
