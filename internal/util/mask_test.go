package util

import "testing"

func TestMaskName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"山田太郎", "山***"},
		{"A", "A***"},
		{"", "***"},
	}
	for _, tc := range cases {
		if got := MaskName(tc.in); got != tc.want {
			t.Fatalf("MaskName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskLineUserID(t *testing.T) {
	if got := MaskLineUserID("U4af4980629abcdef"); got != "U4af49..." {
		t.Fatalf("MaskLineUserID long = %q", got)
	}
	if got := MaskLineUserID(""); got != "***" {
		t.Fatalf("MaskLineUserID empty = %q", got)
	}
}
