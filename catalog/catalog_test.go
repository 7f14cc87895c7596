package catalog

import (
	"testing"

	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/lhx"
	"github.com/arkdb/pagestore/pfconfig"
	"github.com/arkdb/pagestore/rf"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	cfg := pfconfig.NewWithParams(dir, 4096, nil)
	c, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestCreateTableInsertAndRead(t *testing.T) {
	c := openTestCatalog(t)
	defer c.Close()

	attrs := []rf.AttrInfo{{Name: "id", Kind: kv.Int}, {Name: "name", Kind: kv.Varchar}}
	if err := c.CreateTable("people", attrs); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	rid, err := c.InsertRow("people", rf.Record{Values: []kv.KeyValue{kv.NewInt(1), kv.NewVarchar([]byte("alice"))}})
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	ti, ok := c.Table("people")
	if !ok {
		t.Fatalf("expected table people to be registered")
	}
	rec, err := ti.File.Read(rid)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Values[0].Int() != 1 || string(rec.Values[1].Varchar()) != "alice" {
		t.Fatalf("unexpected row: %+v", rec)
	}
}

func TestCreateIndexBackfillsAndMaintainsOnInsert(t *testing.T) {
	c := openTestCatalog(t)
	defer c.Close()

	attrs := []rf.AttrInfo{{Name: "id", Kind: kv.Int}, {Name: "name", Kind: kv.Varchar}}
	if err := c.CreateTable("people", attrs); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	rid1, err := c.InsertRow("people", rf.Record{Values: []kv.KeyValue{kv.NewInt(1), kv.NewVarchar([]byte("alice"))}})
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	if err := c.CreateIndex("people", "idx_id", "id", 4); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	rid, err := c.InsertRow("people", rf.Record{Values: []kv.KeyValue{kv.NewInt(2), kv.NewVarchar([]byte("bob"))}})
	if err != nil {
		t.Fatalf("InsertRow after index: %v", err)
	}

	ti, _ := c.Table("people")
	ix := ti.Indexes["idx_id"]
	if ix == nil {
		t.Fatalf("expected idx_id to be registered")
	}

	target := kv.NewInt(2)
	bound := &lhx.Bound{Value: target, Inclusive: true}
	it, err := ix.Index.Scan(bound, bound)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer it.Close()
	k, gotRID, ok, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok || k.Int() != 2 || gotRID != rid {
		t.Fatalf("expected to find key 2 inserted after CreateIndex at %v, got ok=%v key=%v rid=%v", rid, ok, k, gotRID)
	}

	backfilled := &lhx.Bound{Value: kv.NewInt(1), Inclusive: true}
	it1, err := ix.Index.Scan(backfilled, backfilled)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer it1.Close()
	k, gotRID, ok, err = it1.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok || k.Int() != 1 || gotRID != rid1 {
		t.Fatalf("expected to find backfilled key 1 at %v, got ok=%v key=%v rid=%v", rid1, ok, k, gotRID)
	}
}

func TestDropTableRemovesIndexesAndRows(t *testing.T) {
	c := openTestCatalog(t)
	defer c.Close()

	attrs := []rf.AttrInfo{{Name: "id", Kind: kv.Int}}
	if err := c.CreateTable("things", attrs); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.CreateIndex("things", "idx_id", "id", 4); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := c.DropTable("things"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, ok := c.Table("things"); ok {
		t.Fatalf("expected things to be gone after DropTable")
	}
}
