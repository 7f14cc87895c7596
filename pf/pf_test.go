package pf

import (
	"path/filepath"
	"testing"

	"github.com/arkdb/pagestore/errs"
)

func TestCreateOpenCloseLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.pgf")

	if err := Create(path, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Create(path, nil); err == nil {
		t.Fatalf("expected error creating file twice")
	} else if !errs.Is(err, errs.CodeFileExists) {
		t.Fatalf("expected CodeFileExists, got %v", err)
	}

	f, err := Open(path, 4096, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	count, err := f.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 pages on fresh file, got %d", count)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestAppendWriteReadPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.pgf")
	if err := Create(path, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f, err := Open(path, 4096, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	page := make([]byte, 4096)
	copy(page, []byte("hello world"))
	pno, err := f.AppendPage(page)
	if err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if pno != 0 {
		t.Fatalf("expected first appended page number 0, got %d", pno)
	}

	count, _ := f.PageCount()
	if count != 1 {
		t.Fatalf("expected 1 page, got %d", count)
	}

	buf := make([]byte, 4096)
	if err := f.ReadPage(0, buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if string(buf[:11]) != "hello world" {
		t.Fatalf("unexpected content: %q", buf[:11])
	}

	updated := make([]byte, 4096)
	copy(updated, []byte("goodbye"))
	if err := f.WritePage(0, updated); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := f.ReadPage(0, buf); err != nil {
		t.Fatalf("ReadPage after write: %v", err)
	}
	if string(buf[:7]) != "goodbye" {
		t.Fatalf("unexpected content after write: %q", buf[:7])
	}

	c := f.Counters()
	if c.Appends != 1 || c.Writes != 1 || c.Reads != 2 {
		t.Fatalf("unexpected counters: %+v", c)
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.pgf")
	if err := Create(path, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f, err := Open(path, 4096, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 4096)
	if err := f.ReadPage(0, buf); err == nil {
		t.Fatalf("expected error reading page from empty file")
	} else if !errs.Is(err, errs.CodeSeekFailure) {
		t.Fatalf("expected CodeSeekFailure, got %v", err)
	}
}

func TestOpenRejectsNonAlignedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pgf")
	if err := Create(path, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f, err := Open(path, 4096, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	page := make([]byte, 4096)
	if _, err := f.AppendPage(page); err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	f.Close()

	if _, err := Open(path, 4097, nil); err == nil {
		t.Fatalf("expected error opening with mismatched page size")
	}

	if _, err := Open(path, 4096, nil); err != nil {
		t.Fatalf("Open with matching page size should succeed: %v", err)
	}
}

func TestDestroyRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.pgf")
	if err := Create(path, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Destroy(path); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := Open(path, 4096, nil); err == nil {
		t.Fatalf("expected error opening destroyed file")
	} else if !errs.Is(err, errs.CodeFileNotFound) {
		t.Fatalf("expected CodeFileNotFound, got %v", err)
	}
}
