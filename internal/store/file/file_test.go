package file

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func setupOutputDir(t *testing.T) *OutputFiles {
	t.Helper()
	o, err := New(filepath.Join(t.TempDir(), ".supcut"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestNewCreatesDir(t *testing.T) {
	o := setupOutputDir(t)
	info, err := os.Stat(o.Dir())
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", o.Dir())
	}
}

func TestSaveFirstRun(t *testing.T) {
	o := setupOutputDir(t)

	if err := o.Save([]string{"a", "b"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cur, err := o.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if !reflect.DeepEqual(cur, []string{"a", "b"}) {
		t.Errorf("Current() = %q", cur)
	}

	prev, err := o.Previous()
	if err != nil {
		t.Fatalf("Previous() error = %v", err)
	}
	if len(prev) != 0 {
		t.Errorf("Previous() = %q, want empty", prev)
	}
}

func TestSaveRotatesTwoGenerations(t *testing.T) {
	o := setupOutputDir(t)

	for _, run := range [][]string{{"one"}, {"two"}, {"three"}} {
		if err := o.Save(run); err != nil {
			t.Fatalf("Save(%q) error = %v", run, err)
		}
	}

	cur, _ := o.Current()
	prev, _ := o.Previous()
	if !reflect.DeepEqual(cur, []string{"three"}) {
		t.Errorf("Current() = %q, want [three]", cur)
	}
	if !reflect.DeepEqual(prev, []string{"two"}) {
		t.Errorf("Previous() = %q, want [two]", prev)
	}

	data, err := os.ReadFile(o.CurrentPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "three\n" {
		t.Errorf("file content = %q, want verbatim lines", data)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	o := setupOutputDir(t)
	if err := o.Save([]string{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := o.Save([]string{"y"}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(o.Dir())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{previousFile, currentFile}
	if len(names) != 2 {
		t.Fatalf("dir entries = %v, want %v", names, want)
	}
}

func TestCurrentFallsBackToInterruptedSave(t *testing.T) {
	o := setupOutputDir(t)
	if err := os.WriteFile(filepath.Join(o.Dir(), newFile), []byte("pending\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cur, err := o.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if !reflect.DeepEqual(cur, []string{"pending"}) {
		t.Errorf("Current() = %q, want [pending]", cur)
	}
}

func TestCurrentMissing(t *testing.T) {
	o := setupOutputDir(t)
	if _, err := o.Current(); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
