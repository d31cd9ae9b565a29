package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pagebase/pagebase/internal/bufferpool"
	"github.com/pagebase/pagebase/internal/storage/pager"
	"github.com/pagebase/pagebase/internal/storage/pager/layout"
)

func openTestTablespace(t *testing.T, path string) (*bufferpool.Pool, *pager.Container) {
	t.Helper()
	c, err := pager.OpenContainer(path, pager.ContainerConfig{TablespaceName: "system"})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	pool := bufferpool.Open(c, "system", bufferpool.Config{Capacity: 64})
	t.Cleanup(func() {
		pool.Shutdown(context.Background())
		c.Close()
	})
	return pool, c
}

func TestBootstrapCreatesFiveSysTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.pgbase")
	pool, c := openTestTablespace(t, path)

	mgr, err := Bootstrap("system", pool, c, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	for _, name := range sysTableOrder {
		if _, ok := mgr.Table("system", name); !ok {
			t.Fatalf("missing bootstrapped table %s", name)
		}
	}
	if got := len(mgr.Tables("system")); got != 5 {
		t.Fatalf("Tables(\"system\") returned %d names, want 5", got)
	}
}

func TestBootstrapSelfDescribesIntoSysTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.pgbase")
	pool, c := openTestTablespace(t, path)

	mgr, err := Bootstrap("system", pool, c, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	sysTables, _ := mgr.Table("system", SysTables)
	rows, err := mgr.ScanRows(sysTables)
	if err != nil {
		t.Fatalf("ScanRows(SYS_TABLES): %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("SYS_TABLES has %d rows, want 5 (one per bootstrapped table)", len(rows))
	}

	names := make(map[string]bool, len(rows))
	for _, r := range rows {
		names[r[1].Str] = true
	}
	for _, name := range sysTableOrder {
		if !names[name] {
			t.Fatalf("SYS_TABLES missing self-describing row for %s", name)
		}
	}
}

func TestCreateTableAndInsertScanRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.pgbase")
	pool, c := openTestTablespace(t, path)

	mgr, err := Bootstrap("system", pool, c, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	cols := []Column{
		{Name: "id", Type: TypeInt},
		{Name: "name", Type: TypeString},
	}
	table, err := mgr.CreateTable("system", "T", cols)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	const rowCount = 100
	for i := 0; i < rowCount; i++ {
		err := mgr.InsertRow(table, []Value{IntValue(int32(i)), StringValue("row")})
		if err != nil {
			t.Fatalf("InsertRow(%d): %v", i, err)
		}
	}

	rows, err := mgr.ScanRows(table)
	if err != nil {
		t.Fatalf("ScanRows: %v", err)
	}
	if len(rows) != rowCount {
		t.Fatalf("ScanRows returned %d rows, want %d", len(rows), rowCount)
	}
	for i, r := range rows {
		if r[0].Int != int32(i) || r[1].Str != "row" {
			t.Fatalf("row %d = %+v, want id=%d name=row", i, r, i)
		}
	}
}

func TestCreateIndexRegistersAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.pgbase")
	pool, c := openTestTablespace(t, path)

	mgr, err := Bootstrap("system", pool, c, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	table, err := mgr.CreateTable("system", "T", []Column{{Name: "id", Type: TypeInt}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	idx, err := mgr.CreateIndex("T_id_idx", table, []string{"id"}, layout.KeyTypeInt, true)
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	tree, err := mgr.OpenIndex(idx)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	if err := tree.Insert(layout.IntKey(1), 42, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	pageID, slot, ok, err := tree.Find(layout.IntKey(1))
	if err != nil || !ok || pageID != 42 || slot != 0 {
		t.Fatalf("Find(1) = (%d, %d, %v), want (42, 0, true): err=%v", pageID, slot, ok, err)
	}

	got, ok := mgr.Index("T_id_idx")
	if !ok || got.HeaderPage != idx.HeaderPage {
		t.Fatalf("Index(%q) = %+v, %v, want matching descriptor", "T_id_idx", got, ok)
	}
}

func TestReopenReloadsExistingCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.pgbase")

	func() {
		pool, c := openTestTablespace(t, path)
		mgr, err := Bootstrap("system", pool, c, nil)
		if err != nil {
			t.Fatalf("Bootstrap: %v", err)
		}
		table, err := mgr.CreateTable("system", "T", []Column{{Name: "id", Type: TypeInt}})
		if err != nil {
			t.Fatalf("CreateTable: %v", err)
		}
		for i := 0; i < 10; i++ {
			if err := mgr.InsertRow(table, []Value{IntValue(int32(i))}); err != nil {
				t.Fatalf("InsertRow: %v", err)
			}
		}
		pool.Shutdown(context.Background())
		c.Close()
	}()

	c, err := pager.OpenContainer(path, pager.ContainerConfig{})
	if err != nil {
		t.Fatalf("reopen OpenContainer: %v", err)
	}
	defer c.Close()
	pool := bufferpool.Open(c, "system", bufferpool.Config{Capacity: 64})
	defer pool.Shutdown(context.Background())

	mgr, err := Bootstrap("system", pool, c, nil)
	if err != nil {
		t.Fatalf("reopen Bootstrap: %v", err)
	}
	table, ok := mgr.Table("system", "T")
	if !ok {
		t.Fatal("user table T did not survive reopen")
	}
	rows, err := mgr.ScanRows(table)
	if err != nil {
		t.Fatalf("ScanRows after reopen: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("ScanRows after reopen returned %d rows, want 10", len(rows))
	}
}
