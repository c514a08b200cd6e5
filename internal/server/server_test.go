package server

import "testing"

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		listen string
		want   string
	}{
		{"", ":8000"},
		{"8000", ":8000"},
		{":9090", ":9090"},
		{"0.0.0.0:8000", "0.0.0.0:8000"},
		{"localhost:8000", "localhost:8000"},
	}
	for _, tc := range cases {
		if got := normalizeAddr(tc.listen); got != tc.want {
			t.Errorf("normalizeAddr(%q) = %q, want %q", tc.listen, got, tc.want)
		}
	}
}
