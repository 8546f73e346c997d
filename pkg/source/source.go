// Package source defines the byte-level contract the pipeline engine
// schedules over (File enumerates Partitions, a Partition exposes
// Pages, a Page is a random-access byte region) plus adapters that
// turn concrete byte sources (in-memory slices, local directories)
// into typed item streams.
//
// Partitions of a File are disjoint and their union is the File; the
// partition count is known before execution. A partition is owned
// exclusively by the task processing it and a page by the reader
// draining it. The engine never reads past a page's Len and treats all
// adapter errors as opaque, wrapping them with the partition identity.
package source

import (
	"context"
	"io"
)

// File enumerates the partitions of a byte source. Partitions is
// consumed once; afterwards the File value is discarded.
type File interface {
	Partitions(ctx context.Context) ([]Partition, error)
}

// Partition is an addressable, independently readable slice of a
// source: one object, one file, one archive segment.
type Partition interface {
	Pages(ctx context.Context) ([]Page, error)
}

// Page is a readable byte region with a known length, supporting
// random reads of [offset, offset+len(buf)). Pages that hold handles
// implement io.Closer; writable pages additionally implement WriterAt.
type Page interface {
	Len() uint64
	ReadAt(ctx context.Context, offset uint64, buf []byte) error
}

// WriterAt is the optional write half of a Page.
type WriterAt interface {
	WriteAt(ctx context.Context, offset uint64, buf []byte) error
}

// Cursor layers a sequential read position over a random-access Page.
// Pages themselves carry no position; scanners above them maintain
// their own.
type Cursor struct {
	page Page
	off  uint64
}

// NewCursor returns a cursor at the start of page.
func NewCursor(page Page) *Cursor {
	return &Cursor{page: page}
}

// Read fills buf from the current position, advancing it. At the end
// of the page it returns 0, io.EOF; a short final read returns the
// count with nil error and EOF on the following call.
func (c *Cursor) Read(ctx context.Context, buf []byte) (int, error) {
	remaining := c.page.Len() - c.off
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	if err := c.page.ReadAt(ctx, c.off, buf); err != nil {
		return 0, err
	}
	c.off += uint64(len(buf))
	return len(buf), nil
}

// closePages closes every page that holds a handle.
func closePages(pages []Page) error {
	var first error
	for _, p := range pages {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
