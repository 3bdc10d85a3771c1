package csvcodec

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type rowWriter struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newRowWriter(w io.Writer) *rowWriter {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &rowWriter{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *rowWriter) writeRow(row ...string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csvcodec: writer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

// blank writes an empty line; sections are separated by them.
func (s *rowWriter) blank() error {
	return s.writeRow()
}

func (s *rowWriter) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csvcodec: writer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// writeAll writes rows in order, stopping at the first error.
func (s *rowWriter) writeAll(rows [][]string) error {
	for _, row := range rows {
		if err := s.writeRow(row...); err != nil {
			return err
		}
	}
	return nil
}
