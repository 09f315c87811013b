package classify

import "testing"

func TestClassifyTarget(t *testing.T) {
	cases := []struct {
		title       string
		description string
		wantTarget  bool
	}{
		{"Large pothole on Main Street", "dangerous for vehicles", true},
		{"Cracked pavement", "near the school entrance", true},
		{"Road damage after rains", "", true},
		{"Water Supply Issue", "no water since morning", false},
		{"Overflowing garbage bin", "corner of 5th avenue", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got := Classify(tc.title, tc.description)
		if got.IsTarget != tc.wantTarget {
			t.Fatalf("Classify(%q, %q).IsTarget = %v, want %v", tc.title, tc.description, got.IsTarget, tc.wantTarget)
		}
	}
}

func TestClassifyCategoryLadder(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Pothole near the market", CategoryPothole},
		{"Garbage not collected", CategorySanitation},
		{"Water leak on 2nd street", CategoryPothole}, // street outranks water in the ladder
		{"Pipe leak in basement", CategoryWater},
		{"Street light not working", CategoryPothole}, // street matches first
		{"Power outage", CategoryElectricity},
		{"Broken swing in playground", CategoryParks},
		{"Faulty signal at the intersection", CategoryTraffic},
		{"Loud noise at night", CategoryOther},
	}
	for _, tc := range cases {
		got := Classify(tc.title, "")
		if got.Category != tc.want {
			t.Fatalf("Classify(%q).Category = %q, want %q", tc.title, got.Category, tc.want)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	a := Classify("Pothole", "on the road")
	b := Classify("Pothole", "on the road")
	if a != b {
		t.Fatalf("expected deterministic result, got %#v and %#v", a, b)
	}
}
