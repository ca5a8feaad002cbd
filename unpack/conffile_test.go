package unpack

import "testing"

func TestMergeConfFileTable(t *testing.T) {
	cases := []struct {
		name           string
		orig, cur, new string
		want           confAction
	}{
		{"all-equal", "a", "a", "a", confSkip},
		{"upstream-changed-no-local-edits", "a", "a", "b", confInstallNew},
		{"local-edit-no-upstream-change", "a", "b", "a", confKeepCurrent},
		{"local-edit-matches-upstream", "a", "b", "b", confKeepCurrent},
		{"all-differ", "a", "b", "c", confInstallAsNew},
		{"never-tracked", "", "b", "c", confInstallAsNew},
		{"never-tracked-nothing-on-disk", "", "", "c", confInstallAsNew},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := mergeConfFile(c.orig, c.cur, c.new)
			if got != c.want {
				t.Errorf("mergeConfFile(%q,%q,%q) = %v, want %v", c.orig, c.cur, c.new, got, c.want)
			}
		})
	}
}
