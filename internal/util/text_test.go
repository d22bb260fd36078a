package util

import "testing"

func TestParseCandidateToken(t *testing.T) {
	cases := []struct {
		token string
		name  string
		party string
		ok    bool
	}{
		{token: "O'Rourke-D", name: "O'Rourke", party: "D", ok: true},
		{token: "Smith-Jones-R", name: "Smith-Jones", party: "R", ok: true},
		{token: "Write-In-W", name: "Write-In", party: "W", ok: true},
		{token: "Cruz-R", name: "Cruz", party: "R", ok: true},
		{token: "Hawkins-GRN", name: "Hawkins", party: "GRN", ok: true},
		{token: "Smith–Jones-R", name: "Smith-Jones", party: "R", ok: true},
		{token: "NoPartyHere", ok: false},
		{token: "Lower-d", ok: false},
		{token: "-R", ok: false},
		{token: "Trailing-", ok: false},
		{token: "", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			name, party, ok := ParseCandidateToken(tc.token)
			if ok != tc.ok {
				t.Fatalf("ok got %v want %v", ok, tc.ok)
			}
			if !ok {
				if name != "" || party != "" {
					t.Fatalf("expected absent values, got %q %q", name, party)
				}
				return
			}
			if name != tc.name || party != tc.party {
				t.Fatalf("got (%q, %q) want (%q, %q)", name, party, tc.name, tc.party)
			}
		})
	}
}

func TestNameKey(t *testing.T) {
	if NameKey("O’Rourke") != NameKey("O'Rourke") {
		t.Fatalf("typographic apostrophe not folded")
	}
	if NameKey(" cruz ") != "CRUZ" {
		t.Fatalf("got %q", NameKey(" cruz "))
	}
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("U.S. SEN   GOVERNOR\r\n\n District Cruz-R  O'Rourke-D \n")
	if len(lines) != 2 {
		t.Fatalf("len=%d", len(lines))
	}
	if lines[0] != "U.S. SEN GOVERNOR" || lines[1] != "District Cruz-R O'Rourke-D" {
		t.Fatalf("lines=%q", lines)
	}
}
