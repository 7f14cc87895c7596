// Package catalog is a deliberately minimal table/index directory: enough
// to exercise rf and lhx together without growing into a query planner.
// It persists its own directory as rows in a dedicated record file
// ("catalog.tbl") rather than the sidecar JSON + .hdr files the teacher's
// db.DBManager used, and registers secondary indexes backed by lhx.Index.
package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/lhx"
	"github.com/arkdb/pagestore/pfconfig"
	"github.com/arkdb/pagestore/rf"
)

// row kinds stored in catalog.tbl.
const (
	rowTable uint32 = 0
	rowIndex uint32 = 1
)

// catalogSchema is fixed: every row, whether describing a column or an
// index, fits the same six attributes.
//
//	rowkind : 0 = column, 1 = index
//	table   : owning table name
//	name    : column name, or index name
//	extra   : unused for columns; indexed column name for an index
//	num     : column kind (kv.Kind) for a column row, or initial bucket
//	          count for an index row
//	ord     : column ordinal position (unused for index rows)
func catalogSchema() rf.Schema {
	return rf.Schema{Attrs: []rf.AttrInfo{
		{Name: "rowkind", Kind: kv.Int},
		{Name: "table", Kind: kv.Varchar},
		{Name: "name", Kind: kv.Varchar},
		{Name: "extra", Kind: kv.Varchar},
		{Name: "num", Kind: kv.Int},
		{Name: "ord", Kind: kv.Int},
	}}
}

// IndexInfo describes one secondary index registered on a table column.
type IndexInfo struct {
	Column string
	Index  *lhx.Index
}

// TableInfo is one open table: its schema, backing record file, and any
// secondary indexes registered on it.
type TableInfo struct {
	Schema  rf.Schema
	File    *rf.File
	Indexes map[string]*IndexInfo
}

// Catalog is the open table/index directory for one data directory.
type Catalog struct {
	cfg     *pfconfig.Config
	dataDir string
	dir     *rf.File
	tables  map[string]*TableInfo
	log     *zap.SugaredLogger
}

func tablePath(dataDir, name string) string { return filepath.Join(dataDir, name+".tbl") }

// Open opens (creating if absent) the catalog directory at cfg.DataDir and
// reopens every table and index it names.
func Open(cfg *pfconfig.Config) (*Catalog, error) {
	path := filepath.Join(cfg.DataDir, "catalog.tbl")
	if _, err := rf.Open(path, catalogSchema(), cfg); err != nil {
		if !errs.Is(err, errs.CodeFileNotFound) {
			return nil, err
		}
		if err := rf.Create(path, cfg.Logger); err != nil {
			return nil, err
		}
	}
	dir, err := rf.Open(path, catalogSchema(), cfg)
	if err != nil {
		return nil, err
	}

	c := &Catalog{cfg: cfg, dataDir: cfg.DataDir, dir: dir, tables: make(map[string]*TableInfo), log: cfg.Logger}
	if err := c.reload(); err != nil {
		dir.Close()
		return nil, err
	}
	if c.log != nil {
		c.log.Infow("catalog opened", "datadir", cfg.DataDir, "tables", len(c.tables))
	}
	return c, nil
}

// reload rebuilds the in-memory table/index maps from catalog.tbl's rows,
// reopening each table's record file and each index's lhx.Index.
func (c *Catalog) reload() error {
	it, err := c.dir.Scan("", rf.OpAny, kv.KeyValue{}, nil)
	if err != nil {
		return err
	}
	defer it.Close()

	type colRow struct {
		name string
		kind kv.Kind
		ord  int32
	}
	type idxRow struct {
		name   string
		column string
		n      uint32
	}
	cols := make(map[string][]colRow)
	idxs := make(map[string][]idxRow)

	for {
		rid, _, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rec, err := c.dir.Read(rid)
		if err != nil {
			return err
		}
		table := string(rec.Values[1].Varchar())
		switch rec.Values[0].Int() {
		case int32(rowTable):
			cols[table] = append(cols[table], colRow{
				name: string(rec.Values[2].Varchar()),
				kind: kv.Kind(rec.Values[4].Int()),
				ord:  rec.Values[5].Int(),
			})
		case int32(rowIndex):
			idxs[table] = append(idxs[table], idxRow{
				name:   string(rec.Values[2].Varchar()),
				column: string(rec.Values[3].Varchar()),
				n:      uint32(rec.Values[4].Int()),
			})
		}
	}

	for table, rows := range cols {
		sort.Slice(rows, func(i, j int) bool { return rows[i].ord < rows[j].ord })
		schema := rf.Schema{}
		for _, r := range rows {
			schema.Attrs = append(schema.Attrs, rf.AttrInfo{Name: r.name, Kind: r.kind})
		}
		f, err := rf.Open(tablePath(c.dataDir, table), schema, c.cfg)
		if err != nil {
			return err
		}
		c.tables[table] = &TableInfo{Schema: schema, File: f, Indexes: make(map[string]*IndexInfo)}
	}

	for table, rows := range idxs {
		ti, ok := c.tables[table]
		if !ok {
			return fmt.Errorf("catalog row references unknown table %q", table)
		}
		for _, r := range rows {
			keyIdx := ti.Schema.IndexOf(r.column)
			if keyIdx < 0 {
				return fmt.Errorf("catalog row references unknown column %q on table %q", r.column, table)
			}
			x, err := lhx.Open(c.dataDir, indexFileName(table, r.name), ti.Schema.Attrs[keyIdx].Kind, c.cfg)
			if err != nil {
				return err
			}
			ti.Indexes[r.name] = &IndexInfo{Column: r.column, Index: x}
		}
	}
	return nil
}

func indexFileName(table, index string) string { return table + "_" + index }

// Close releases the catalog row store, every table, and every index.
func (c *Catalog) Close() error {
	var err error
	for _, t := range c.tables {
		for _, ix := range t.Indexes {
			err = multierr.Append(err, ix.Index.Close())
		}
		err = multierr.Append(err, t.File.Close())
	}
	return multierr.Append(err, c.dir.Close())
}

// Table returns the named table's info, if open.
func (c *Catalog) Table(name string) (*TableInfo, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// TableNames lists every open table, sorted.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CreateTable creates a new table's backing record file and persists its
// column definitions as rows in catalog.tbl.
func (c *Catalog) CreateTable(name string, attrs []rf.AttrInfo) error {
	if _, exists := c.tables[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	if err := rf.Create(tablePath(c.dataDir, name), c.cfg.Logger); err != nil {
		return err
	}
	schema := rf.Schema{Attrs: attrs}
	f, err := rf.Open(tablePath(c.dataDir, name), schema, c.cfg)
	if err != nil {
		return err
	}
	for i, a := range attrs {
		row := rf.Record{Values: []kv.KeyValue{
			kv.NewInt(int32(rowTable)),
			kv.NewVarchar([]byte(name)),
			kv.NewVarchar([]byte(a.Name)),
			kv.NewVarchar(nil),
			kv.NewInt(int32(a.Kind)),
			kv.NewInt(int32(i)),
		}}
		if _, err := c.dir.Insert(row); err != nil {
			f.Close()
			return err
		}
	}
	c.tables[name] = &TableInfo{Schema: schema, File: f, Indexes: make(map[string]*IndexInfo)}
	if c.log != nil {
		c.log.Infow("table created", "table", name, "columns", len(attrs))
	}
	return nil
}

// DropTable closes and removes a table's record file, its indexes, and
// their catalog rows.
func (c *Catalog) DropTable(name string) error {
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("table %q not found", name)
	}
	for idxName := range t.Indexes {
		if err := c.DropIndex(name, idxName); err != nil {
			return err
		}
	}
	if err := t.File.Close(); err != nil {
		return err
	}
	if err := rf.Destroy(tablePath(c.dataDir, name)); err != nil {
		return err
	}
	if err := c.deleteRows(func(rec rf.Record) bool {
		return rec.Values[0].Int() == int32(rowTable) && string(rec.Values[1].Varchar()) == name
	}); err != nil {
		return err
	}
	delete(c.tables, name)
	return nil
}

// CreateIndex builds a new lhx.Index over an existing table column,
// backfilling it from every record currently in the table.
func (c *Catalog) CreateIndex(table, indexName, column string, initialBuckets uint32) error {
	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("table %q not found", table)
	}
	if _, exists := t.Indexes[indexName]; exists {
		return fmt.Errorf("index %q already exists on table %q", indexName, table)
	}
	keyIdx := t.Schema.IndexOf(column)
	if keyIdx < 0 {
		return fmt.Errorf("column %q not found on table %q", column, table)
	}
	keyKind := t.Schema.Attrs[keyIdx].Kind

	fname := indexFileName(table, indexName)
	if err := lhx.Create(c.dataDir, fname, keyKind, initialBuckets, c.cfg); err != nil {
		return err
	}
	x, err := lhx.Open(c.dataDir, fname, keyKind, c.cfg)
	if err != nil {
		return err
	}

	it, err := t.File.Scan("", rf.OpAny, kv.KeyValue{}, nil)
	if err != nil {
		x.Close()
		return err
	}
	defer it.Close()
	for {
		rid, _, ok, err := it.Next()
		if err != nil {
			x.Close()
			return err
		}
		if !ok {
			break
		}
		rec, err := t.File.Read(rid)
		if err != nil {
			x.Close()
			return err
		}
		if err := x.InsertEntry(rec.Values[keyIdx], rid); err != nil {
			x.Close()
			return err
		}
	}

	row := rf.Record{Values: []kv.KeyValue{
		kv.NewInt(int32(rowIndex)),
		kv.NewVarchar([]byte(table)),
		kv.NewVarchar([]byte(indexName)),
		kv.NewVarchar([]byte(column)),
		kv.NewInt(int32(initialBuckets)),
		kv.NewInt(0),
	}}
	if _, err := c.dir.Insert(row); err != nil {
		x.Close()
		return err
	}
	t.Indexes[indexName] = &IndexInfo{Column: column, Index: x}
	if c.log != nil {
		c.log.Infow("index created", "table", table, "index", indexName, "column", column)
	}
	return nil
}

// DropIndex closes and removes an index and its catalog row.
func (c *Catalog) DropIndex(table, indexName string) error {
	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("table %q not found", table)
	}
	ix, ok := t.Indexes[indexName]
	if !ok {
		return fmt.Errorf("index %q not found on table %q", indexName, table)
	}
	if err := ix.Index.Close(); err != nil {
		return err
	}
	if err := lhx.Destroy(c.dataDir, indexFileName(table, indexName)); err != nil {
		return err
	}
	if err := c.deleteRows(func(rec rf.Record) bool {
		return rec.Values[0].Int() == int32(rowIndex) &&
			string(rec.Values[1].Varchar()) == table &&
			string(rec.Values[2].Varchar()) == indexName
	}); err != nil {
		return err
	}
	delete(t.Indexes, indexName)
	return nil
}

// InsertRow inserts a record into table, maintaining every registered
// index on it.
func (c *Catalog) InsertRow(table string, rec rf.Record) (rf.RID, error) {
	t, ok := c.tables[table]
	if !ok {
		return rf.RID{}, fmt.Errorf("table %q not found", table)
	}
	rid, err := t.File.Insert(rec)
	if err != nil {
		return rf.RID{}, err
	}
	for _, ix := range t.Indexes {
		keyIdx := t.Schema.IndexOf(ix.Column)
		if err := ix.Index.InsertEntry(rec.Values[keyIdx], rid); err != nil {
			return rid, err
		}
	}
	return rid, nil
}

// DeleteRow deletes rid from table, maintaining every registered index.
// The record is read before deletion so its indexed key values are known.
func (c *Catalog) DeleteRow(table string, rid rf.RID) error {
	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("table %q not found", table)
	}
	rec, err := t.File.Read(rid)
	if err != nil {
		return err
	}
	for _, ix := range t.Indexes {
		keyIdx := t.Schema.IndexOf(ix.Column)
		if err := ix.Index.DeleteEntry(rec.Values[keyIdx], rid); err != nil {
			return err
		}
	}
	return t.File.Delete(rid)
}

// deleteRows removes every catalog row for which match returns true.
func (c *Catalog) deleteRows(match func(rf.Record) bool) error {
	it, err := c.dir.Scan("", rf.OpAny, kv.KeyValue{}, nil)
	if err != nil {
		return err
	}
	var toDelete []rf.RID
	for {
		rid, _, ok, err := it.Next()
		if err != nil {
			it.Close()
			return err
		}
		if !ok {
			break
		}
		rec, err := c.dir.Read(rid)
		if err != nil {
			it.Close()
			return err
		}
		if match(rec) {
			toDelete = append(toDelete, rid)
		}
	}
	it.Close()
	for _, rid := range toDelete {
		if err := c.dir.Delete(rid); err != nil {
			return err
		}
	}
	return nil
}

// ScanTable calls cb for every record currently in table.
func (c *Catalog) ScanTable(table string, cb func(rf.Record, rf.RID) error) error {
	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("table %q not found", table)
	}
	it, err := t.File.Scan("", rf.OpAny, kv.KeyValue{}, nil)
	if err != nil {
		return err
	}
	defer it.Close()
	for {
		rid, _, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rec, err := t.File.Read(rid)
		if err != nil {
			return err
		}
		if err := cb(rec, rid); err != nil {
			return err
		}
	}
}

// DeleteWhere deletes every record in table for which match returns true,
// maintaining indexes, and reports how many were deleted.
func (c *Catalog) DeleteWhere(table string, match func(rf.Record) bool) (int, error) {
	var toDelete []rf.RID
	err := c.ScanTable(table, func(rec rf.Record, rid rf.RID) error {
		if match(rec) {
			toDelete = append(toDelete, rid)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, rid := range toDelete {
		if err := c.DeleteRow(table, rid); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}

// UpdateWhere replaces every record in table for which match returns true
// with updater's result (a delete of the old RID followed by an insert,
// since rf's in-place Update only rewrites values, not a typed diff), and
// reports how many were updated.
func (c *Catalog) UpdateWhere(table string, match func(rf.Record) bool, updater func(rf.Record) rf.Record) (int, error) {
	type pending struct {
		rid rf.RID
		rec rf.Record
	}
	var todo []pending
	err := c.ScanTable(table, func(rec rf.Record, rid rf.RID) error {
		if match(rec) {
			todo = append(todo, pending{rid: rid, rec: updater(rec)})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, p := range todo {
		if err := c.DeleteRow(table, p.rid); err != nil {
			return 0, err
		}
		if _, err := c.InsertRow(table, p.rec); err != nil {
			return 0, err
		}
	}
	return len(todo), nil
}

// Describe renders table's schema as "name (col:TYPE,...)".
func (c *Catalog) Describe(table string) (string, error) {
	t, ok := c.tables[table]
	if !ok {
		return "", fmt.Errorf("table %q not found", table)
	}
	s := table + " ("
	for i, a := range t.Schema.Attrs {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s:%s", a.Name, strings.ToUpper(a.Kind.String()))
	}
	s += ")"
	return s, nil
}
