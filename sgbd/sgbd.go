// Package sgbd is the command-driven front end: a small SQL-ish command
// language parsed line by line and routed onto catalog/rf/lhx, kept close
// to the teacher's own REPL in shape (command dispatch, WHERE-clause
// evaluator, CSV-ish value literals) but typed through kv.KeyValue instead
// of raw strings.
package sgbd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arkdb/pagestore/catalog"
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/lhx"
	"github.com/arkdb/pagestore/pfconfig"
	"github.com/arkdb/pagestore/rf"
)

// SGBD is the open database driving a single data directory's catalog.
type SGBD struct {
	cfg *pfconfig.Config
	cat *catalog.Catalog
}

// NewSGBD opens (or creates) the database at cfg.DataDir.
func NewSGBD(cfg *pfconfig.Config) (*SGBD, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	cat, err := catalog.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &SGBD{cfg: cfg, cat: cat}, nil
}

// Run listens on stdin for commands until EXIT. No prompt is printed.
func (s *SGBD) Run() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			return s.Close()
		}
		if err := s.ProcessCommand(line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Close releases the catalog's open table and index files. Every write
// this process made is already durable — pf writes straight through to
// the OS on every call, there is no buffer pool to flush.
func (s *SGBD) Close() error {
	return s.cat.Close()
}

// Save is kept for parity with the teacher's explicit "flush state" step;
// pagestore has nothing left to flush by the time a command returns, so
// this is a no-op that exists for callers that still call it before EXIT.
func (s *SGBD) Save() error { return nil }

// ProcessCommand parses and executes a single command text, writing
// output to w.
func (s *SGBD) ProcessCommand(text string, w io.Writer) error {
	t := strings.TrimSpace(text)
	up := strings.ToUpper(t)
	switch {
	case strings.HasPrefix(up, "CREATE TABLE "):
		return s.processCreateTable(t, w)
	case strings.HasPrefix(up, "CREATE INDEX "):
		return s.processCreateIndex(t, w)
	case strings.HasPrefix(up, "DROP INDEX "):
		return s.processDropIndex(t, w)
	case strings.HasPrefix(up, "DEBUG INDEX "):
		return s.processDebugIndex(t, w)
	case strings.HasPrefix(up, "INSERT INTO "):
		return s.processInsert(t, w)
	case strings.HasPrefix(up, "SELECT "):
		return s.processSelect(t, w)
	case strings.HasPrefix(up, "DELETE "):
		return s.processDelete(t, w)
	case strings.HasPrefix(up, "UPDATE "):
		return s.processUpdate(t, w)
	case strings.HasPrefix(up, "DROP TABLES"):
		return s.processDropTables(w)
	case strings.HasPrefix(up, "DROP TABLE "):
		return s.processDropTable(t, w)
	case strings.HasPrefix(up, "DESCRIBE TABLES"):
		return s.processDescribeTables(w)
	case strings.HasPrefix(up, "DESCRIBE TABLE "):
		return s.processDescribeTable(t, w)
	default:
		return fmt.Errorf("unsupported command: %s", text)
	}
}

// parseColType accepts INT, FLOAT, REAL (an alias for FLOAT), CHAR(n) and
// VARCHAR(n). CHAR and VARCHAR both map to kv.Varchar — rf has no
// fixed-width string type, so the declared size is informational only.
func parseColType(s string) (kv.Kind, error) {
	s = strings.TrimSpace(s)
	sUp := strings.ToUpper(s)
	switch {
	case sUp == "INT":
		return kv.Int, nil
	case sUp == "FLOAT", sUp == "REAL":
		return kv.Float, nil
	case strings.HasPrefix(sUp, "CHAR(") && strings.HasSuffix(sUp, ")"):
		return kv.Varchar, nil
	case strings.HasPrefix(sUp, "VARCHAR(") && strings.HasSuffix(sUp, ")"):
		return kv.Varchar, nil
	default:
		return 0, fmt.Errorf("unknown column type: %s", s)
	}
}

// CREATE TABLE Name (col:TYPE, ...)
func (s *SGBD) processCreateTable(text string, w io.Writer) error {
	idx := strings.Index(text, "(")
	if idx < 0 {
		return fmt.Errorf("invalid CREATE TABLE syntax")
	}
	pre := strings.TrimSpace(text[:idx])
	parts := strings.Fields(pre)
	if len(parts) < 3 {
		return fmt.Errorf("invalid CREATE TABLE syntax")
	}
	name := parts[2]
	body := strings.TrimSpace(text[idx+1:])
	if strings.HasSuffix(body, ")") {
		body = body[:len(body)-1]
	}
	var attrs []rf.AttrInfo
	for _, c := range strings.Split(body, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		sp := strings.SplitN(c, ":", 2)
		if len(sp) != 2 {
			return fmt.Errorf("invalid column definition: %s", c)
		}
		kind, err := parseColType(sp[1])
		if err != nil {
			return err
		}
		attrs = append(attrs, rf.AttrInfo{Name: strings.TrimSpace(sp[0]), Kind: kind})
	}
	if err := s.cat.CreateTable(name, attrs); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

// CREATE INDEX idx ON table(col)
func (s *SGBD) processCreateIndex(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("CREATE INDEX "):])
	onIdx := strings.Index(strings.ToUpper(rest), " ON ")
	if onIdx < 0 {
		return fmt.Errorf("invalid CREATE INDEX syntax: missing ON")
	}
	idxName := strings.TrimSpace(rest[:onIdx])
	rest = strings.TrimSpace(rest[onIdx+len(" ON "):])
	open := strings.Index(rest, "(")
	shut := strings.Index(rest, ")")
	if open < 0 || shut < 0 || shut < open {
		return fmt.Errorf("invalid CREATE INDEX syntax: expected table(column)")
	}
	table := strings.TrimSpace(rest[:open])
	column := strings.TrimSpace(rest[open+1 : shut])
	if err := s.cat.CreateIndex(table, idxName, column, pfconfig.DefaultInitialBuckets); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

// DROP INDEX idx ON table
func (s *SGBD) processDropIndex(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("DROP INDEX "):])
	onIdx := strings.Index(strings.ToUpper(rest), " ON ")
	if onIdx < 0 {
		return fmt.Errorf("invalid DROP INDEX syntax: missing ON")
	}
	idxName := strings.TrimSpace(rest[:onIdx])
	table := strings.TrimSpace(rest[onIdx+len(" ON "):])
	if err := s.cat.DropIndex(table, idxName); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

// DEBUG INDEX idx ON table dumps every bucket of idx's chain structure and
// its page-count counters, for interactive inspection during development.
func (s *SGBD) processDebugIndex(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("DEBUG INDEX "):])
	onIdx := strings.Index(strings.ToUpper(rest), " ON ")
	if onIdx < 0 {
		return fmt.Errorf("invalid DEBUG INDEX syntax: missing ON")
	}
	idxName := strings.TrimSpace(rest[:onIdx])
	table := strings.TrimSpace(rest[onIdx+len(" ON "):])
	ti, ok := s.cat.Table(table)
	if !ok {
		return fmt.Errorf("table %q not found", table)
	}
	ix, ok := ti.Indexes[idxName]
	if !ok {
		return fmt.Errorf("index %q not found on table %q", idxName, table)
	}
	fmt.Fprintf(w, "primary pages = %d, total pages = %d\n", ix.Index.NumPrimaryPages(), ix.Index.NumAllPages())
	for b := uint32(0); b < ix.Index.NumPrimaryPages(); b++ {
		fmt.Fprintf(w, "bucket %d:\n", b)
		if err := ix.Index.DebugPrintBucket(w, b); err != nil {
			return err
		}
	}
	return nil
}

// parseLiteral converts a string literal to a typed key value per kind,
// stripping surrounding double quotes from varchar literals.
func parseLiteral(kind kv.Kind, lit string) (kv.KeyValue, error) {
	lit = strings.TrimSpace(lit)
	switch kind {
	case kv.Int:
		v, err := strconv.Atoi(lit)
		if err != nil {
			return kv.KeyValue{}, err
		}
		return kv.NewInt(int32(v)), nil
	case kv.Float:
		v, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return kv.KeyValue{}, err
		}
		return kv.NewFloat(float32(v)), nil
	default:
		if len(lit) >= 2 && lit[0] == '"' && lit[len(lit)-1] == '"' {
			lit = lit[1 : len(lit)-1]
		}
		return kv.NewVarchar([]byte(lit)), nil
	}
}

// INSERT INTO Name VALUES (v1,v2,...)
func (s *SGBD) processInsert(text string, w io.Writer) error {
	up := strings.ToUpper(text)
	idx := strings.Index(up, " VALUES (")
	if idx < 0 {
		return fmt.Errorf("invalid INSERT syntax")
	}
	pre := strings.TrimSpace(text[:idx])
	parts := strings.Fields(pre)
	if len(parts) < 3 {
		return fmt.Errorf("invalid INSERT syntax")
	}
	name := parts[2]
	vstart := idx + len(" VALUES (")
	if !strings.HasSuffix(text, ")") {
		return fmt.Errorf("invalid INSERT syntax: missing )")
	}
	body := text[vstart : len(text)-1]

	ti, ok := s.cat.Table(name)
	if !ok {
		return fmt.Errorf("table %q not found", name)
	}
	lits := strings.Split(body, ",")
	if len(lits) != len(ti.Schema.Attrs) {
		return fmt.Errorf("expected %d values, got %d", len(ti.Schema.Attrs), len(lits))
	}
	values := make([]kv.KeyValue, len(lits))
	for i, lit := range lits {
		v, err := parseLiteral(ti.Schema.Attrs[i].Kind, lit)
		if err != nil {
			return err
		}
		values[i] = v
	}
	if _, err := s.cat.InsertRow(name, rf.Record{Values: values}); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

// condition is one parsed comparison term of a WHERE clause.
type condition struct {
	leftIsCol   bool
	leftColIdx  int
	leftConst   string
	rightIsCol  bool
	rightColIdx int
	rightConst  string
	op          string
}

func parseWhereClause(where string, schema rf.Schema, alias string) ([]condition, error) {
	var res []condition
	where = strings.TrimSpace(where)
	if where == "" {
		return res, nil
	}
	for _, p := range strings.Split(where, " AND ") {
		p = strings.TrimSpace(p)
		ops := []string{"<=", ">=", "<>", "=", "<", ">"}
		var found, left, right string
		for _, op := range ops {
			if i := strings.Index(p, op); i >= 0 {
				found, left, right = op, strings.TrimSpace(p[:i]), strings.TrimSpace(p[i+len(op):])
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("unsupported condition: %s", p)
		}
		c := condition{op: found}
		if strings.HasPrefix(left, alias+".") {
			col := left[len(alias)+1:]
			i := schema.IndexOf(col)
			if i < 0 {
				return nil, fmt.Errorf("unknown column: %s", col)
			}
			c.leftIsCol, c.leftColIdx = true, i
		} else {
			c.leftConst = left
		}
		if strings.HasPrefix(right, alias+".") {
			col := right[len(alias)+1:]
			i := schema.IndexOf(col)
			if i < 0 {
				return nil, fmt.Errorf("unknown column: %s", col)
			}
			c.rightIsCol, c.rightColIdx = true, i
		} else {
			c.rightConst = right
		}
		res = append(res, c)
	}
	return res, nil
}

func compareOp(cmp int, op string) bool {
	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

func evalConditions(rec rf.Record, schema rf.Schema, conds []condition) (bool, error) {
	for _, c := range conds {
		var left, right kv.KeyValue
		var err error
		if c.leftIsCol {
			left = rec.Values[c.leftColIdx]
		} else if left, err = parseLiteral(inferKind(c, schema), c.leftConst); err != nil {
			return false, err
		}
		if c.rightIsCol {
			right = rec.Values[c.rightColIdx]
		} else if right, err = parseLiteral(inferKind(c, schema), c.rightConst); err != nil {
			return false, err
		}
		if !compareOp(left.Compare(right), c.op) {
			return false, nil
		}
	}
	return true, nil
}

// inferKind picks the comparison's key type from whichever side of the
// condition is a column; a constant-vs-constant comparison falls back to
// varchar, matching the teacher's lexical-default behavior.
func inferKind(c condition, schema rf.Schema) kv.Kind {
	if c.leftIsCol {
		return schema.Attrs[c.leftColIdx].Kind
	}
	if c.rightIsCol {
		return schema.Attrs[c.rightColIdx].Kind
	}
	return kv.Varchar
}

// findEqualityIndex returns the indexed column name and literal value of a
// single top-level "alias.col = const" condition, if the WHERE clause is
// exactly that and table has an index on col. Used to accelerate SELECT
// with a point scan instead of a full table scan.
func findEqualityIndex(conds []condition, schema rf.Schema, ti *catalog.TableInfo) (*catalog.IndexInfo, kv.KeyValue, bool) {
	if len(conds) != 1 {
		return nil, kv.KeyValue{}, false
	}
	c := conds[0]
	if c.op != "=" || !c.leftIsCol || c.rightIsCol {
		return nil, kv.KeyValue{}, false
	}
	colName := schema.Attrs[c.leftColIdx].Name
	for _, ix := range ti.Indexes {
		if ix.Column == colName {
			v, err := parseLiteral(schema.Attrs[c.leftColIdx].Kind, c.rightConst)
			if err != nil {
				return nil, kv.KeyValue{}, false
			}
			return ix, v, true
		}
	}
	return nil, kv.KeyValue{}, false
}

// SELECT proj FROM name alias [WHERE ...]
func (s *SGBD) processSelect(text string, w io.Writer) error {
	up := strings.ToUpper(text)
	idx := strings.Index(up, " FROM ")
	if idx < 0 {
		return fmt.Errorf("invalid SELECT syntax")
	}
	selPart := strings.TrimSpace(text[len("SELECT "):idx])
	rest := strings.TrimSpace(text[idx+len(" FROM "):])
	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	fromPart, wherePart := rest, ""
	if whereIdx >= 0 {
		fromPart, wherePart = strings.TrimSpace(rest[:whereIdx]), strings.TrimSpace(rest[whereIdx+len(" WHERE "):])
	}
	parts := strings.Fields(fromPart)
	if len(parts) < 2 {
		return fmt.Errorf("invalid SELECT FROM syntax")
	}
	name, alias := parts[0], parts[1]
	ti, ok := s.cat.Table(name)
	if !ok {
		return fmt.Errorf("table %q not found", name)
	}

	var projIdxs []int
	if strings.TrimSpace(selPart) == "*" {
		for i := range ti.Schema.Attrs {
			projIdxs = append(projIdxs, i)
		}
	} else {
		for _, c := range strings.Split(selPart, ",") {
			c = strings.TrimSpace(c)
			if !strings.HasPrefix(c, alias+".") {
				return fmt.Errorf("projection must use alias: %s", c)
			}
			i := ti.Schema.IndexOf(c[len(alias)+1:])
			if i < 0 {
				return fmt.Errorf("unknown column in projection: %s", c)
			}
			projIdxs = append(projIdxs, i)
		}
	}

	conds, err := parseWhereClause(wherePart, ti.Schema, alias)
	if err != nil {
		return err
	}

	total := 0
	printRow := func(rec rf.Record) {
		var b strings.Builder
		for i, pi := range projIdxs {
			if i > 0 {
				b.WriteString(" ; ")
			}
			b.WriteString(rec.Values[pi].String())
		}
		fmt.Fprintln(w, b.String())
		total++
	}

	if ix, val, ok := findEqualityIndex(conds, ti.Schema, ti); ok {
		bound := &lhx.Bound{Value: val, Inclusive: true}
		it, err := ix.Index.Scan(bound, bound)
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			_, rid, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			rec, err := ti.File.Read(rid)
			if err != nil {
				return err
			}
			printRow(rec)
		}
	} else {
		err = s.cat.ScanTable(name, func(rec rf.Record, _ rf.RID) error {
			ok, err := evalConditions(rec, ti.Schema, conds)
			if err != nil {
				return err
			}
			if ok {
				printRow(rec)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Total selected records = %d\n", total)
	return nil
}

// DELETE name alias [WHERE ...]
func (s *SGBD) processDelete(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("DELETE "):])
	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	fromPart, wherePart := rest, ""
	if whereIdx >= 0 {
		fromPart, wherePart = strings.TrimSpace(rest[:whereIdx]), strings.TrimSpace(rest[whereIdx+len(" WHERE "):])
	}
	parts := strings.Fields(fromPart)
	if len(parts) < 2 {
		return fmt.Errorf("invalid DELETE syntax")
	}
	name, alias := parts[0], parts[1]
	ti, ok := s.cat.Table(name)
	if !ok {
		return fmt.Errorf("table %q not found", name)
	}
	conds, err := parseWhereClause(wherePart, ti.Schema, alias)
	if err != nil {
		return err
	}
	cnt, err := s.cat.DeleteWhere(name, func(rec rf.Record) bool {
		ok, _ := evalConditions(rec, ti.Schema, conds)
		return ok
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total deleted records = %d\n", cnt)
	return nil
}

// UPDATE name alias SET alias.col=val,... [WHERE ...]
func (s *SGBD) processUpdate(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("UPDATE "):])
	setIdx := strings.Index(strings.ToUpper(rest), " SET ")
	if setIdx < 0 {
		return fmt.Errorf("invalid UPDATE syntax: missing SET")
	}
	before := strings.TrimSpace(rest[:setIdx])
	after := strings.TrimSpace(rest[setIdx+len(" SET "):])
	whereIdx := strings.Index(strings.ToUpper(after), " WHERE ")
	setPart, wherePart := after, ""
	if whereIdx >= 0 {
		setPart, wherePart = strings.TrimSpace(after[:whereIdx]), strings.TrimSpace(after[whereIdx+len(" WHERE "):])
	}
	parts := strings.Fields(before)
	if len(parts) < 2 {
		return fmt.Errorf("invalid UPDATE syntax")
	}
	name, alias := parts[0], parts[1]
	ti, ok := s.cat.Table(name)
	if !ok {
		return fmt.Errorf("table %q not found", name)
	}
	changes := make(map[int]string)
	for _, a := range strings.Split(setPart, ",") {
		a = strings.TrimSpace(a)
		eq := strings.Index(a, "=")
		if eq < 0 {
			return fmt.Errorf("invalid SET assignment: %s", a)
		}
		lhs, rhs := strings.TrimSpace(a[:eq]), strings.TrimSpace(a[eq+1:])
		if !strings.HasPrefix(lhs, alias+".") {
			return fmt.Errorf("left side must be alias.column: %s", lhs)
		}
		i := ti.Schema.IndexOf(lhs[len(alias)+1:])
		if i < 0 {
			return fmt.Errorf("unknown column: %s", lhs)
		}
		changes[i] = rhs
	}
	conds, err := parseWhereClause(wherePart, ti.Schema, alias)
	if err != nil {
		return err
	}
	cnt, err := s.cat.UpdateWhere(name, func(rec rf.Record) bool {
		ok, _ := evalConditions(rec, ti.Schema, conds)
		return ok
	}, func(rec rf.Record) rf.Record {
		nv := append([]kv.KeyValue{}, rec.Values...)
		for i, lit := range changes {
			v, err := parseLiteral(ti.Schema.Attrs[i].Kind, lit)
			if err == nil {
				nv[i] = v
			}
		}
		return rf.Record{Values: nv}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total updated records = %d\n", cnt)
	return nil
}

func (s *SGBD) processDropTable(text string, w io.Writer) error {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return fmt.Errorf("invalid DROP TABLE syntax")
	}
	if err := s.cat.DropTable(parts[2]); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func (s *SGBD) processDropTables(w io.Writer) error {
	for _, name := range s.cat.TableNames() {
		if err := s.cat.DropTable(name); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func (s *SGBD) processDescribeTable(text string, w io.Writer) error {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return fmt.Errorf("invalid DESCRIBE TABLE syntax")
	}
	desc, err := s.cat.Describe(parts[2])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, desc)
	return nil
}

func (s *SGBD) processDescribeTables(w io.Writer) error {
	for _, name := range s.cat.TableNames() {
		desc, err := s.cat.Describe(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, desc)
	}
	return nil
}
