package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/goccy/go-json"
	"github.com/jszwec/csvutil"

	"github.com/gostdlib/primegen/search"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatCSV  = "csv"
)

// printer writes the results of a search. prime() is called from inside the search's
// Emitter, so it is never called concurrently.
type printer interface {
	header(bits int) error
	prime(p search.AcceptedPrime) error
	footer(elapsed time.Duration) error
}

func newPrinter(format string, w io.Writer) (printer, error) {
	switch format {
	case formatText:
		return textPrinter{w: w}, nil
	case formatJSON:
		return jsonPrinter{w: w}, nil
	case formatCSV:
		cw := csv.NewWriter(w)
		return &csvPrinter{w: cw, enc: csvutil.NewEncoder(cw)}, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// textPrinter writes:
//
//	BitLength: 64 bits
//	1: 7576010478300513543
//	Time to Generate: 1.2ms
type textPrinter struct {
	w io.Writer
}

func (t textPrinter) header(bits int) error {
	_, err := fmt.Fprintf(t.w, "BitLength: %d bits\n", bits)
	return err
}

func (t textPrinter) prime(p search.AcceptedPrime) error {
	_, err := fmt.Fprintf(t.w, "%d: %v\n", p.Index, p.Value)
	return err
}

func (t textPrinter) footer(elapsed time.Duration) error {
	_, err := fmt.Fprintf(t.w, "Time to Generate: %v\n", elapsed)
	return err
}

// row is a prime as it is written by the json and csv printers.
type row struct {
	Index int      `json:"index" csv:"index"`
	Value *big.Int `json:"value" csv:"value"`
}

// jsonPrinter writes one JSON object per line and nothing else.
type jsonPrinter struct {
	w io.Writer
}

func (j jsonPrinter) header(int) error {
	return nil
}

func (j jsonPrinter) prime(p search.AcceptedPrime) error {
	b, err := json.Marshal(row{Index: p.Index, Value: p.Value})
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = j.w.Write(b)
	return err
}

func (j jsonPrinter) footer(time.Duration) error {
	return nil
}

// csvPrinter writes an "index,value" header and a line per prime.
type csvPrinter struct {
	w   *csv.Writer
	enc *csvutil.Encoder
}

func (c *csvPrinter) header(int) error {
	return nil // csvutil writes the header with the first row.
}

func (c *csvPrinter) prime(p search.AcceptedPrime) error {
	if err := c.enc.Encode(row{Index: p.Index, Value: p.Value}); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvPrinter) footer(time.Duration) error {
	c.w.Flush()
	return c.w.Error()
}
