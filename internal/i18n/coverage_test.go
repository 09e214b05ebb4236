package i18n

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"
)

// Message IDs passed as string literals to T, Tf or Tn. IDs need at least
// two segments so dynamic prefixes like T("cmd."+name) are skipped.
var sourceIDPattern = regexp.MustCompile(`\bT[fn]?\("([a-zA-Z][a-zA-Z0-9]*(?:\.[a-zA-Z][a-zA-Z0-9]*)+)"`)

// Every ID used in source must be in every locale, and no locale may
// carry IDs nothing uses.
func TestLocalesMatchSource(t *testing.T) {
	root := moduleRoot(t)
	used := sourceMessageIDs(t, root)
	if len(used) == 0 {
		t.Fatal("no message IDs found in source")
	}

	for name, messages := range loadLocaleFiles(t) {
		t.Run(name, func(t *testing.T) {
			var missing, unused []string
			for id := range used {
				if _, ok := messages[id]; !ok {
					missing = append(missing, id)
				}
			}
			for id := range messages {
				if !used[id] {
					unused = append(unused, id)
				}
			}
			slices.Sort(missing)
			slices.Sort(unused)
			if len(missing) > 0 {
				t.Errorf("missing %d IDs: %s", len(missing), strings.Join(missing, ", "))
			}
			if len(unused) > 0 {
				t.Errorf("unused IDs: %s", strings.Join(unused, ", "))
			}
		})
	}
}

func sourceMessageIDs(t *testing.T, root string) map[string]bool {
	t.Helper()
	ids := map[string]bool{}
	for _, dir := range []string{"cmd", "internal"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			for _, m := range sourceIDPattern.FindAllSubmatch(data, -1) {
				ids[string(m[1])] = true
			}
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", dir, err)
		}
	}
	return ids
}

func moduleRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above the test directory")
		}
		dir = parent
	}
}
