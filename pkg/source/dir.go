package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultPageSize is the page granularity Dir splits files into when
// none is configured.
const DefaultPageSize = 8 << 20 // 8 MiB

// Dir is a File over a local directory: one partition per regular
// file (sorted by name, so partition order is stable), each split
// into fixed-size pages.
type Dir struct {
	path     string
	pageSize uint64
}

// DirOption configures a Dir source.
type DirOption func(*Dir)

// WithPageSize sets the page granularity in bytes.
func WithPageSize(n uint64) DirOption {
	return func(d *Dir) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

// NewDir returns a source over the regular files directly inside path.
func NewDir(path string, opts ...DirOption) *Dir {
	d := &Dir{path: path, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Partitions implements File.
func (d *Dir) Partitions(ctx context.Context) ([]Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", d.path, err)
	}
	var parts []Partition
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		parts = append(parts, &filePartition{
			path:     filepath.Join(d.path, entry.Name()),
			size:     uint64(info.Size()),
			pageSize: d.pageSize,
		})
	}
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].(*filePartition).path < parts[j].(*filePartition).path
	})
	return parts, nil
}

type filePartition struct {
	path     string
	size     uint64
	pageSize uint64
}

// Pages implements Partition. All pages of a partition share one file
// handle, released when the last page is closed.
func (p *filePartition) Pages(ctx context.Context) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.path, err)
	}
	shared := &sharedFile{f: f}
	var pages []Page
	for off := uint64(0); off < p.size || (p.size == 0 && off == 0); off += p.pageSize {
		length := min(p.pageSize, p.size-off)
		shared.refs++
		pages = append(pages, &filePage{shared: shared, base: off, length: length})
		if p.size == 0 {
			break
		}
	}
	return pages, nil
}

type sharedFile struct {
	mu   sync.Mutex
	f    *os.File
	refs int
}

func (s *sharedFile) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		return s.f.Close()
	}
	return nil
}

type filePage struct {
	shared *sharedFile
	base   uint64
	length uint64
	closed bool
}

// Len implements Page.
func (p *filePage) Len() uint64 { return p.length }

// ReadAt implements Page.
func (p *filePage) ReadAt(ctx context.Context, offset uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset+uint64(len(buf)) > p.length {
		return fmt.Errorf("read [%d, %d) beyond page length %d", offset, offset+uint64(len(buf)), p.length)
	}
	if _, err := p.shared.f.ReadAt(buf, int64(p.base+offset)); err != nil {
		return err
	}
	return nil
}

// Close releases the page's share of the file handle.
func (p *filePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.shared.release()
}
