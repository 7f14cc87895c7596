package lhx

import (
	"path/filepath"
	"testing"

	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/pfconfig"
	"github.com/arkdb/pagestore/rf"
)

func openTestIndex(t *testing.T, pageSize int, initialBuckets uint32) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := pfconfig.NewWithParams(dir, pageSize, nil)
	if err := Create(dir, "idx", kv.Int, initialBuckets, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	x, err := Open(dir, "idx", kv.Int, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return x, dir
}

func TestLinearHashTenThousandKeys(t *testing.T) {
	x, _ := openTestIndex(t, 256, 4)
	defer x.Close()

	const n = 10000
	for i := 0; i < n; i++ {
		key := kv.NewInt(int32(i))
		rid := rf.RID{Page: uint32(i / 100), Slot: uint16(i % 100)}
		if err := x.InsertEntry(key, rid); err != nil {
			t.Fatalf("InsertEntry(%d): %v", i, err)
		}
	}
	if x.meta.entryCount != n {
		t.Fatalf("expected entryCount %d, got %d", n, x.meta.entryCount)
	}
	if x.meta.bucketCount <= 4 {
		t.Fatalf("expected bucket count to have grown beyond initial, got %d", x.meta.bucketCount)
	}

	it, err := x.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer it.Close()
	seen := make(map[int32]bool, n)
	for {
		k, _, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen[k.Int()] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct keys from full scan, got %d", n, len(seen))
	}

	for i := 0; i < n; i += 777 {
		key := kv.NewInt(int32(i))
		rid := rf.RID{Page: uint32(i / 100), Slot: uint16(i % 100)}
		if err := x.DeleteEntry(key, rid); err != nil {
			t.Fatalf("DeleteEntry(%d): %v", i, err)
		}
	}
	if x.meta.bucketCount < x.meta.initialBucketCount {
		t.Fatalf("bucket count must never drop below initial bucket count")
	}
}

func TestDeleteDuringScan(t *testing.T) {
	x, _ := openTestIndex(t, 256, 4)
	defer x.Close()

	for i := 0; i < 50; i++ {
		if err := x.InsertEntry(kv.NewInt(int32(i)), rf.RID{Page: uint32(i), Slot: 0}); err != nil {
			t.Fatalf("InsertEntry: %v", err)
		}
	}

	it, err := x.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	count := 0
	for {
		k, rid, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
		if k.Int() == 10 {
			if err := x.DeleteEntry(k, rid); err != nil {
				t.Fatalf("DeleteEntry: %v", err)
			}
		}
	}
	it.Close()
	if count != 50 {
		t.Fatalf("expected 50 entries from the scan that deleted key 10, got %d", count)
	}

	it2, err := x.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan after delete: %v", err)
	}
	defer it2.Close()
	count = 0
	for {
		k, _, ok, err := it2.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if k.Int() == 10 {
			t.Fatalf("deleted key 10 should not appear in post-delete scan")
		}
		count++
	}
	if count != 49 {
		t.Fatalf("expected 49 entries after delete, got %d", count)
	}
}

func TestVarcharExactMatchScan(t *testing.T) {
	dir := t.TempDir()
	cfg := pfconfig.NewWithParams(dir, 256, nil)
	if err := Create(dir, "idx", kv.Varchar, 4, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	x, err := Open(dir, "idx", kv.Varchar, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer x.Close()

	names := []string{"alice", "bob", "carol", "dave", "alice"}
	for i, name := range names {
		key := kv.NewVarchar([]byte(name))
		rid := rf.RID{Page: uint32(i), Slot: 0}
		if err := x.InsertEntry(key, rid); err != nil {
			t.Fatalf("InsertEntry(%s): %v", name, err)
		}
	}

	target := kv.NewVarchar([]byte("alice"))
	it, err := x.Scan(&Bound{Value: target, Inclusive: true}, &Bound{Value: target, Inclusive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer it.Close()

	matches := 0
	for {
		k, _, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if string(k.Varchar()) != "alice" {
			t.Fatalf("point scan on alice returned %q", k.Varchar())
		}
		matches++
	}
	if matches != 2 {
		t.Fatalf("expected 2 matches for duplicate key alice, got %d", matches)
	}
}

func TestInsertDuplicateEntryFails(t *testing.T) {
	x, _ := openTestIndex(t, 4096, 4)
	defer x.Close()

	key := kv.NewInt(1)
	rid := rf.RID{Page: 1, Slot: 0}
	if err := x.InsertEntry(key, rid); err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	if err := x.InsertEntry(key, rid); err == nil {
		t.Fatalf("expected duplicate entry error on second insert")
	}
}

func TestDeleteMissingEntryFails(t *testing.T) {
	x, _ := openTestIndex(t, 4096, 4)
	defer x.Close()

	if err := x.DeleteEntry(kv.NewInt(1), rf.RID{Page: 1, Slot: 0}); err == nil {
		t.Fatalf("expected entry-not-found error")
	}
}

func TestCloseAndReopenPreservesMetadata(t *testing.T) {
	x, dir := openTestIndex(t, 4096, 4)
	for i := 0; i < 20; i++ {
		if err := x.InsertEntry(kv.NewInt(int32(i)), rf.RID{Page: uint32(i), Slot: 0}); err != nil {
			t.Fatalf("InsertEntry: %v", err)
		}
	}
	if err := x.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg := pfconfig.NewWithParams(dir, 4096, nil)
	reopened, err := Open(dir, "idx", kv.Int, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.meta.entryCount != 20 {
		t.Fatalf("expected entryCount 20 after reopen, got %d", reopened.meta.entryCount)
	}
	_ = filepath.Join(dir, "idx.pp")
}
