package pagebase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pagebase/pagebase/internal/catalog"
	"github.com/pagebase/pagebase/internal/storage/pager"
)

// TestFreshStartCreatesSystemTablespaceAndSysTables matches the "fresh
// start" scenario: an empty data directory, opened for the first time,
// ends up with a SYSTEM tablespace of at least 3 pages and exactly the
// five SYS_* tables.
func TestFreshStartCreatesSystemTablespaceAndSysTables(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	defer db.Shutdown(context.Background())

	if err := db.CreateTablespace("system"); err != nil {
		t.Fatalf("CreateTablespace(system): %v", err)
	}

	pool, err := db.GetBufferPool("system")
	if err != nil {
		t.Fatalf("GetBufferPool: %v", err)
	}
	_ = pool

	ts, ok := db.storage.Get("system")
	if !ok {
		t.Fatal("system tablespace not registered")
	}
	if got := ts.Container.TotalPages(); got < 3 {
		t.Fatalf("system tablespace has %d pages, want at least 3", got)
	}

	schema, err := db.GetSchemaManager("system")
	if err != nil {
		t.Fatalf("GetSchemaManager: %v", err)
	}
	if got := len(schema.Tables("system")); got != 5 {
		t.Fatalf("fresh catalog has %d tables, want 5", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "system.pgbase")); err != nil {
		t.Fatalf("expected system.pgbase to exist: %v", err)
	}
}

// TestPersistenceAcrossRestart matches the "persistence" scenario: insert
// 100 rows into a user table, shut down, reopen, and confirm the row
// count and contents survive.
func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	func() {
		db, err := OpenDatabase(Options{DataDir: dir})
		if err != nil {
			t.Fatalf("OpenDatabase: %v", err)
		}
		defer db.Shutdown(context.Background())
		if err := db.CreateTablespace("u"); err != nil {
			t.Fatalf("CreateTablespace(u): %v", err)
		}
		schema, err := db.GetSchemaManager("u")
		if err != nil {
			t.Fatalf("GetSchemaManager(u): %v", err)
		}
		table, err := schema.CreateTable("u", "T", []catalog.Column{
			{Name: "id", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeString},
		})
		if err != nil {
			t.Fatalf("CreateTable: %v", err)
		}
		for i := 0; i < 100; i++ {
			err := schema.InsertRow(table, []catalog.Value{
				catalog.IntValue(int32(i)),
				catalog.StringValue("row-" + strconv.Itoa(i)),
			})
			if err != nil {
				t.Fatalf("InsertRow(%d): %v", i, err)
			}
		}
	}()

	db, err := OpenDatabase(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen OpenDatabase: %v", err)
	}
	defer db.Shutdown(context.Background())
	if err := db.CreateTablespace("u"); err != nil {
		t.Fatalf("reopen CreateTablespace(u): %v", err)
	}
	schema, err := db.GetSchemaManager("u")
	if err != nil {
		t.Fatalf("reopen GetSchemaManager(u): %v", err)
	}
	table, ok := schema.Table("u", "T")
	if !ok {
		t.Fatal("table T did not survive restart")
	}
	rows, err := schema.ScanRows(table)
	if err != nil {
		t.Fatalf("ScanRows after restart: %v", err)
	}
	if len(rows) != 100 {
		t.Fatalf("row count after restart = %d, want 100", len(rows))
	}
	for i, r := range rows {
		if r[0].Int != int32(i) || r[1].Str != "row-"+strconv.Itoa(i) {
			t.Fatalf("row %d = %+v, want id=%d name=row-%d", i, r, i, i)
		}
	}
}

// TestCorruptedFreeSpaceMapHaltsStartup matches the "crash-free restart"
// scenario: corrupting the free-space map page on disk (outside the
// engine) must surface as ErrInvalidPage on the next open, not silently
// continue.
func TestCorruptedFreeSpaceMapHaltsStartup(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenDatabase(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	if err := db.CreateTablespace("system"); err != nil {
		t.Fatalf("CreateTablespace: %v", err)
	}
	if err := db.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	path := filepath.Join(dir, "system.pgbase")
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("open backing file: %v", err)
	}
	// Stomp on page 1's (the free-space map's) magic bytes directly,
	// simulating on-disk corruption from outside the engine.
	if _, err := f.WriteAt([]byte{0, 0, 0, 0}, int64(pager.DefaultPageSize)+1); err != nil {
		t.Fatalf("corrupt free-space map: %v", err)
	}
	f.Close()

	reopened, err := OpenDatabase(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("OpenDatabase after corruption: %v", err)
	}
	err = reopened.CreateTablespace("system")
	if !errors.Is(err, pager.ErrInvalidPage) {
		t.Fatalf("CreateTablespace on corrupted free-space map: err = %v, want ErrInvalidPage", err)
	}
}

