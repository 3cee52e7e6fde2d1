package voicedb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/prosody"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "voice.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

const phraseTree = "TOTAL 3\nNODE  punc = String(,)  2\nLEAF String(BB)\nLEAF String(NB)\n"

func TestOpen_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "voice.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", path)
	}
	if db.Path() != path {
		t.Errorf("Path: got %s, want %s", db.Path(), path)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSaveAndLoadTree(t *testing.T) {
	db := newTestDB(t)

	tree, err := cart.ParseText(phraseTree)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if err := db.SaveTree("phrase", tree); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}

	got, err := db.LoadTree("phrase")
	if err != nil {
		t.Fatalf("LoadTree failed: %v", err)
	}
	if got.Name() != "phrase" {
		t.Errorf("Name: got %q, want phrase", got.Name())
	}
	if got.Len() != tree.Len() {
		t.Fatalf("Len: got %d, want %d", got.Len(), tree.Len())
	}
	for i := 0; i < tree.Len(); i++ {
		if got.Node(i).Line != tree.Node(i).Line {
			t.Errorf("node %d: got %q, want %q", i, got.Node(i).Line, tree.Node(i).Line)
		}
	}
}

func TestSaveTree_Overwrites(t *testing.T) {
	db := newTestDB(t)

	small, _ := cart.ParseText("TOTAL 1\nLEAF String(NB)\n")
	big, _ := cart.ParseText(phraseTree)
	if err := db.SaveTree("phrase", small); err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}
	if err := db.SaveTree("phrase", big); err != nil {
		t.Fatalf("SaveTree (overwrite) failed: %v", err)
	}

	infos, err := db.ListTrees()
	if err != nil {
		t.Fatalf("ListTrees failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 tree, got %d", len(infos))
	}
	if infos[0].NodeCount != 3 {
		t.Errorf("NodeCount: got %d, want 3", infos[0].NodeCount)
	}
	if infos[0].Size <= 4 {
		t.Errorf("Size: got %d", infos[0].Size)
	}
}

func TestLoadTree_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.LoadTree("accent")
	if err == nil {
		t.Fatal("expected error")
	}
	if !isNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadTree_CorruptBlob(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Exec("INSERT INTO cart_trees (name, node_count, data) VALUES ('bad', 1, ?)", []byte{0, 0}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	_, err := db.LoadTree("bad")
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDeleteTree(t *testing.T) {
	db := newTestDB(t)
	tree, _ := cart.ParseText(phraseTree)
	db.SaveTree("phrase", tree)

	if err := db.DeleteTree("phrase"); err != nil {
		t.Fatalf("DeleteTree failed: %v", err)
	}
	if err := db.DeleteTree("phrase"); !isNotFound(err) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPhoneStats(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.LoadPhoneStats(); !isNotFound(err) {
		t.Errorf("empty table: expected ErrNotFound, got %v", err)
	}

	table := prosody.DurationTable{
		"a": {Mean: 0.12, StdDev: 0.03},
		"m": {Mean: 0.06, StdDev: 0.01},
	}
	if err := db.SavePhoneStats(table); err != nil {
		t.Fatalf("SavePhoneStats failed: %v", err)
	}
	if err := db.SavePhoneStats(prosody.DurationTable{"a": {Mean: 0.2, StdDev: 0.05}}); err != nil {
		t.Fatalf("SavePhoneStats (update) failed: %v", err)
	}

	got, err := db.LoadPhoneStats()
	if err != nil {
		t.Fatalf("LoadPhoneStats failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 phones, got %d", len(got))
	}
	if got["a"].Mean != 0.2 || got["a"].StdDev != 0.05 {
		t.Errorf("a: got %+v", got["a"])
	}
	if got["m"].Mean != 0.06 {
		t.Errorf("m: got %+v", got["m"])
	}
}
