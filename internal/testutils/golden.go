// Package testutils holds the golden-file helper shared by tests that
// assert on whole rendered payloads.
package testutils

import (
	"os"
	"path"

	"github.com/pmezard/go-difflib/difflib"
)

// TestingT is the subset of *testing.T the helper needs.
type TestingT interface {
	Helper()
	Error(args ...interface{})
	Fatal(args ...interface{})
}

// CheckGoldenFile compares actual against the stored expectation. A missing
// expectation file is seeded from actual so new cases bootstrap themselves;
// review the generated file before committing it.
func CheckGoldenFile(t TestingT, actual []byte, expectFilePath string) {
	t.Helper()

	expect, err := os.ReadFile(expectFilePath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path.Dir(expectFilePath), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(expectFilePath, actual, 0444); err != nil {
			t.Fatal(err)
		}
		return
	} else if err != nil {
		t.Error(err)
		return
	}

	if string(expect) != string(actual) {
		diff := difflib.UnifiedDiff{
			A:       difflib.SplitLines(string(expect)),
			B:       difflib.SplitLines(string(actual)),
			Context: 5,
		}
		d, err := difflib.GetUnifiedDiffString(diff)
		if err != nil {
			t.Fatal(err)
		}
		t.Error(d)
	}
}
