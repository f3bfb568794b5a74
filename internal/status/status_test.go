package status

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		code string
		want Tier
	}{
		{"Danger", Danger},
		{"Warning", Warning},
		{"OK", Normal},
		{"", Normal},
		{"Normal", Normal},
		{"danger", Normal},
		{"WARNING", Normal},
		{" Warning", Normal},
	}

	for _, tt := range tests {
		if got := Classify(tt.code); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestTier_Order(t *testing.T) {
	if !(Normal < Warning && Warning < Danger) {
		t.Error("tiers should be ordered Normal < Warning < Danger")
	}
}

func TestTier_Alerting(t *testing.T) {
	if Normal.Alerting() {
		t.Error("Normal should not alert")
	}
	if !Warning.Alerting() || !Danger.Alerting() {
		t.Error("Warning and Danger should alert")
	}
}

func TestTier_CSSClass(t *testing.T) {
	seen := map[string]Tier{}
	for _, tier := range []Tier{Normal, Warning, Danger} {
		class := tier.CSSClass()
		if prev, ok := seen[class]; ok {
			t.Errorf("%v and %v share CSS class %q", prev, tier, class)
		}
		seen[class] = tier
	}
}
