package source

import (
	"bytes"
	"context"
	"io"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// readChunk is how much a line reader pulls from a page per refill.
const readChunk = 64 << 10

// Lines adapts a byte-level File into a stream of text lines, one
// typed partition per byte partition. Lines may span page boundaries;
// the scanner carries its remainder across pages with plain index
// arithmetic. A trailing line without a final newline is still
// yielded. Line contents are copied out of the scan buffer, so items
// are owned and safe to move across worker boundaries.
//
// Lines stands in for heavier record decoders (WARC, columnar pages):
// anything that can present File/Partition/Page plugs into the same
// shape.
func Lines(f File) amadeus.Source[string] {
	return linesSource{file: f}
}

type linesSource struct {
	file File
}

func (s linesSource) Partitions(ctx context.Context) ([]amadeus.StreamTask[string], error) {
	parts, err := s.file.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]amadeus.StreamTask[string], len(parts))
	for i, p := range parts {
		tasks[i] = linesTask{part: p}
	}
	return tasks, nil
}

type linesTask struct {
	part Partition
}

func (t linesTask) Open(ctx context.Context) (amadeus.Reader[string], error) {
	pages, err := t.part.Pages(ctx)
	if err != nil {
		return nil, err
	}
	return &lineReader{pages: pages}, nil
}

// lineReader scans lines across a partition's pages.
type lineReader struct {
	pages   []Page
	page    int
	cursor  *Cursor
	pending []byte // partial line carried across refills
	lines   [][]byte
	done    bool
}

func (r *lineReader) Next(ctx context.Context) (string, error) {
	for {
		if len(r.lines) > 0 {
			line := r.lines[0]
			r.lines = r.lines[1:]
			return string(line), nil
		}
		if r.done {
			return "", amadeus.End
		}
		if err := r.refill(ctx); err != nil {
			return "", err
		}
	}
}

// refill pulls the next chunk, splitting completed lines off pending.
func (r *lineReader) refill(ctx context.Context) error {
	for {
		if r.cursor == nil {
			if r.page >= len(r.pages) {
				r.done = true
				if len(r.pending) > 0 {
					r.lines = append(r.lines, r.pending)
					r.pending = nil
				}
				return nil
			}
			r.cursor = NewCursor(r.pages[r.page])
		}
		buf := make([]byte, readChunk)
		n, err := r.cursor.Read(ctx, buf)
		if err == io.EOF {
			r.cursor = nil
			r.page++
			continue
		}
		if err != nil {
			return err
		}
		chunk := buf[:n]
		for {
			nl := bytes.IndexByte(chunk, '\n')
			if nl < 0 {
				r.pending = append(r.pending, chunk...)
				break
			}
			line := append(r.pending, chunk[:nl]...)
			r.pending = nil
			r.lines = append(r.lines, line)
			chunk = chunk[nl+1:]
		}
		if len(r.lines) > 0 {
			return nil
		}
	}
}

// Close releases the partition's pages.
func (r *lineReader) Close() error {
	return closePages(r.pages)
}
