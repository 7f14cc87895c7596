package sgbd

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/arkdb/pagestore/pfconfig"
)

func TestScenario(t *testing.T) {
	dir := t.TempDir()
	cfg := pfconfig.New(dir, nil)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	cmds := []string{
		"CREATE TABLE Tab1 (C1:FLOAT,C2:INT)",
		"CREATE TABLE Tab2 (C7:CHAR(5),AA:VARCHAR(2))",
		"CREATE TABLE Tab3 (Toto:CHAR(120))",
		"DESCRIBE TABLE Tab1",
		"DESCRIBE TABLES",
		"DROP TABLE Tab1",
		"DESCRIBE TABLES",
	}
	for _, c := range cmds {
		out.Reset()
		if err := s.ProcessCommand(c, &out); err != nil {
			t.Fatalf("ProcessCommand(%q) failed: %v", c, err)
		}
		up := strings.ToUpper(c)
		if strings.HasPrefix(up, "CREATE TABLE") || strings.HasPrefix(up, "DROP TABLE") {
			got := strings.TrimSpace(out.String())
			if got != "OK" {
				t.Fatalf("expected OK for %s, got %q", c, got)
			}
		}
		if strings.HasPrefix(up, "DESCRIBE TABLE ") {
			got := strings.TrimSpace(out.String())
			if !strings.HasPrefix(got, "Tab1 (") {
				t.Fatalf("DESCRIBE TABLE Tab1 unexpected output: %q", got)
			}
		}
	}

	var allOut bytes.Buffer
	if err := s.ProcessCommand("DESCRIBE TABLES", &allOut); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES): %v", err)
	}
	if strings.Contains(allOut.String(), "Tab1 (") {
		t.Fatalf("Tab1 still present after DROP TABLE: output=%q", allOut.String())
	}
}

func TestDropTables(t *testing.T) {
	dir := t.TempDir()
	cfg := pfconfig.New(dir, nil)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	cmds := []string{
		"CREATE TABLE Tab1 (C1:FLOAT,C2:INT)",
		"CREATE TABLE Tab2 (C7:CHAR(5),AA:VARCHAR(2))",
		"CREATE TABLE Tab3 (Toto:CHAR(120))",
	}
	for _, c := range cmds {
		out.Reset()
		if err := s.ProcessCommand(c, &out); err != nil {
			t.Fatalf("ProcessCommand(%q) failed: %v", c, err)
		}
	}

	out.Reset()
	if err := s.ProcessCommand("DESCRIBE TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES): %v", err)
	}
	txt := out.String()
	if !strings.Contains(txt, "Tab1 (") || !strings.Contains(txt, "Tab2 (") || !strings.Contains(txt, "Tab3 (") {
		t.Fatalf("tables not created properly: output=%q", txt)
	}

	out.Reset()
	if err := s.ProcessCommand("DROP TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DROP TABLES) failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "OK" {
		t.Fatalf("expected OK for DROP TABLES, got %q", got)
	}

	out.Reset()
	if err := s.ProcessCommand("DESCRIBE TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES): %v", err)
	}
	txt = out.String()
	if strings.Contains(txt, "Tab1 (") || strings.Contains(txt, "Tab2 (") || strings.Contains(txt, "Tab3 (") {
		t.Fatalf("tables still present after DROP TABLES: output=%q", txt)
	}
}

func TestInsertSelectDeleteUpdate(t *testing.T) {
	dir := t.TempDir()
	cfg := pfconfig.New(dir, nil)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	run := func(cmd string) string {
		out.Reset()
		if err := s.ProcessCommand(cmd, &out); err != nil {
			t.Fatalf("ProcessCommand(%q): %v", cmd, err)
		}
		return out.String()
	}

	run("CREATE TABLE People (Id:INT,Name:VARCHAR(20))")
	run(`INSERT INTO People VALUES (1,"alice")`)
	run(`INSERT INTO People VALUES (2,"bob")`)
	run(`INSERT INTO People VALUES (3,"carol")`)

	res := run("SELECT p.Id,p.Name FROM People p WHERE p.Id>1")
	if !strings.Contains(res, "Total selected records = 2") {
		t.Fatalf("unexpected SELECT output: %q", res)
	}

	run(`UPDATE People p SET p.Name="bobby" WHERE p.Id=2`)
	res = run("SELECT p.Name FROM People p WHERE p.Id=2")
	if !strings.Contains(res, "bobby") {
		t.Fatalf("expected updated name bobby, got %q", res)
	}

	res = run("DELETE People p WHERE p.Id=1")
	if !strings.Contains(res, "Total deleted records = 1") {
		t.Fatalf("unexpected DELETE output: %q", res)
	}

	res = run("SELECT p.Id FROM People p")
	if !strings.Contains(res, "Total selected records = 2") {
		t.Fatalf("expected 2 remaining records, got %q", res)
	}
}

func TestCreateIndexAcceleratesEqualitySelect(t *testing.T) {
	dir := t.TempDir()
	cfg := pfconfig.New(dir, nil)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	run := func(cmd string) string {
		out.Reset()
		if err := s.ProcessCommand(cmd, &out); err != nil {
			t.Fatalf("ProcessCommand(%q): %v", cmd, err)
		}
		return out.String()
	}

	run("CREATE TABLE Items (Id:INT,Label:VARCHAR(20))")
	for i := 0; i < 20; i++ {
		run(fmt.Sprintf("INSERT INTO Items VALUES (%d,\"item%d\")", i, i))
	}
	run("CREATE INDEX idx_id ON Items(Id)")

	res := run("SELECT i.Label FROM Items i WHERE i.Id=7")
	if !strings.Contains(res, "item7") || !strings.Contains(res, "Total selected records = 1") {
		t.Fatalf("unexpected indexed SELECT output: %q", res)
	}
}

func TestDebugIndexDumpsBucketChains(t *testing.T) {
	dir := t.TempDir()
	cfg := pfconfig.New(dir, nil)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	run := func(cmd string) string {
		out.Reset()
		if err := s.ProcessCommand(cmd, &out); err != nil {
			t.Fatalf("ProcessCommand(%q): %v", cmd, err)
		}
		return out.String()
	}

	run("CREATE TABLE Widgets (Id:INT,Label:VARCHAR(20))")
	run("CREATE INDEX idx_wid ON Widgets(Id)")
	for i := 0; i < 200; i++ {
		run(fmt.Sprintf("INSERT INTO Widgets VALUES (%d,\"w%d\")", i, i))
	}

	res := run("DEBUG INDEX idx_wid ON Widgets")
	if !strings.Contains(res, "primary pages = ") || !strings.Contains(res, "total pages = ") {
		t.Fatalf("expected page-count summary, got %q", res)
	}
	if !strings.Contains(res, "bucket 0:") {
		t.Fatalf("expected at least one bucket dump, got %q", res)
	}
	if !strings.Contains(res, "->") {
		t.Fatalf("expected at least one entry line with a key->rid arrow, got %q", res)
	}
}

