package source_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
	"github.com/alecmocatta/amadeus/pkg/source"
)

// memPage is an in-memory Page for cursor and cache tests.
type memPage struct {
	data  []byte
	reads int
}

func (p *memPage) Len() uint64 { return uint64(len(p.data)) }

func (p *memPage) ReadAt(_ context.Context, offset uint64, buf []byte) error {
	p.reads++
	if offset+uint64(len(buf)) > uint64(len(p.data)) {
		return fmt.Errorf("read past end of page")
	}
	copy(buf, p.data[offset:])
	return nil
}

func TestCursor(t *testing.T) {
	page := &memPage{data: []byte("abcdefgh")}
	cur := source.NewCursor(page)
	var out bytes.Buffer
	buf := make([]byte, 3)
	for {
		n, err := cur.Read(context.Background(), buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		out.Write(buf[:n])
	}
	if out.String() != "abcdefgh" {
		t.Errorf("cursor read %q, want %q", out.String(), "abcdefgh")
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDirPartitionsAreSortedFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.txt": "bb",
		"a.txt": "aaaa",
		"c.txt": "",
	})
	parts, err := source.NewDir(dir).Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions() error = %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("len(partitions) = %d, want 3", len(parts))
	}
	// Sorted by name: a.txt (4 bytes), b.txt (2), c.txt (0).
	var sizes []uint64
	for _, p := range parts {
		pages, err := p.Pages(context.Background())
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}
		sizes = append(sizes, pages[0].Len())
		for _, page := range pages {
			page.(io.Closer).Close()
		}
	}
	if want := []uint64{4, 2, 0}; !slices.Equal(sizes, want) {
		t.Errorf("first page lengths = %v, want %v", sizes, want)
	}
}

func TestDirPages(t *testing.T) {
	dir := writeFiles(t, map[string]string{"data.bin": "0123456789"})
	parts, err := source.NewDir(dir, source.WithPageSize(4)).Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions() error = %v", err)
	}
	pages, err := parts[0].Pages(context.Background())
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("len(pages) = %d, want 3 (4+4+2 bytes)", len(pages))
	}
	var lens []uint64
	var contents []byte
	for _, p := range pages {
		lens = append(lens, p.Len())
		buf := make([]byte, p.Len())
		if err := p.ReadAt(context.Background(), 0, buf); err != nil {
			t.Fatalf("ReadAt() error = %v", err)
		}
		contents = append(contents, buf...)
	}
	if want := []uint64{4, 4, 2}; !slices.Equal(lens, want) {
		t.Errorf("page lengths = %v, want %v", lens, want)
	}
	if string(contents) != "0123456789" {
		t.Errorf("pages concatenate to %q, want %q", contents, "0123456789")
	}
	for _, p := range pages {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		}
	}
}

func TestDirPageRefusesReadPastLen(t *testing.T) {
	dir := writeFiles(t, map[string]string{"data.bin": "0123456789"})
	parts, _ := source.NewDir(dir, source.WithPageSize(4)).Partitions(context.Background())
	pages, _ := parts[0].Pages(context.Background())
	defer func() {
		for _, p := range pages {
			p.(io.Closer).Close()
		}
	}()
	buf := make([]byte, 5)
	if err := pages[0].ReadAt(context.Background(), 0, buf); err == nil {
		t.Error("ReadAt() past Len() error = nil, want error")
	}
}

func TestLines(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"one.txt": "alpha\nbeta\ngamma",
		"two.txt": "delta\n",
	})
	// A page size smaller than the line length forces lines to span
	// page boundaries.
	src := source.Lines(source.NewDir(dir, source.WithPageSize(3)))
	tasks, err := src.Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	var all []string
	for _, task := range tasks {
		r, err := task.Open(context.Background())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		for {
			line, err := r.Next(context.Background())
			if errors.Is(err, amadeus.End) {
				break
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			all = append(all, line)
		}
		if err := amadeus.CloseReader(r); err != nil {
			t.Fatalf("CloseReader() error = %v", err)
		}
	}
	want := []string{"alpha", "beta", "gamma", "delta"}
	if !slices.Equal(all, want) {
		t.Errorf("lines = %v, want %v", all, want)
	}
}

func TestSliceSourcePartitioning(t *testing.T) {
	src := source.Slice([]int{1, 2}, nil, []int{3})
	tasks, err := src.Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}
	var all []int
	for _, task := range tasks {
		r, err := task.Open(context.Background())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		for {
			item, err := r.Next(context.Background())
			if errors.Is(err, amadeus.End) {
				break
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			all = append(all, item)
		}
	}
	if want := []int{1, 2, 3}; !slices.Equal(all, want) {
		t.Errorf("items = %v, want %v", all, want)
	}
}

func TestWebpageOwned(t *testing.T) {
	buf := []byte("shared decode buffer")
	page := source.Webpage{URL: "http://example.com", Contents: buf[:6]}
	owned := page.Owned()
	buf[0] = 'X'
	if string(owned.Contents) != "shared" {
		t.Errorf("owned contents = %q, want %q", owned.Contents, "shared")
	}
}
