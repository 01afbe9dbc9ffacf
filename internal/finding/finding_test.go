package finding

import "testing"

func TestFromFindingsRule(t *testing.T) {
	cases := []struct {
		name   string
		levels []Level
		want   Recommendation
	}{
		{"empty", nil, OK},
		{"safe only", []Level{LevelSafe}, OK},
		{"warning only", []Level{LevelWarning}, Warning},
		{"warning and safe", []Level{LevelWarning, LevelSafe}, Caution},
		{"danger beats everything", []Level{LevelSafe, LevelWarning, LevelDanger}, Danger},
		{"info never escalates", []Level{LevelInfo, LevelInfo}, OK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var findings []Finding
			for _, l := range tc.levels {
				findings = append(findings, Finding{Level: l, Code: "X"})
			}
			if got := FromFindings(findings); got != tc.want {
				t.Errorf("FromFindings(%v) = %v, want %v", tc.levels, got, tc.want)
			}
		})
	}
}

func TestAtLeastOrdering(t *testing.T) {
	if !AtLeast(Danger, Warning) {
		t.Error("danger should be >= warning")
	}
	if AtLeast(OK, Caution) {
		t.Error("ok should not be >= caution")
	}
	if !AtLeast(Caution, Caution) {
		t.Error("threshold should be inclusive")
	}
}
