package util

import "testing"

func TestParseVotes(t *testing.T) {
	cases := []struct {
		name   string
		input  *string
		want   int64
		status CellStatus
	}{
		{name: "thousands separators", input: StringPtr("12,345"), want: 12345, status: CellOK},
		{name: "millions", input: StringPtr("5,257,513"), want: 5257513, status: CellOK},
		{name: "plain", input: StringPtr("4000000"), want: 4000000, status: CellOK},
		{name: "padded", input: StringPtr("  812 "), want: 812, status: CellOK},
		{name: "nil", input: nil, status: CellAbsent},
		{name: "blank", input: StringPtr("   "), status: CellAbsent},
		{name: "percentage", input: StringPtr("50.0 %"), status: CellInvalid},
		{name: "text", input: StringPtr("N/A"), status: CellInvalid},
		{name: "negative", input: StringPtr("-5"), status: CellInvalid},
		{name: "bad grouping", input: StringPtr("1,2,3"), status: CellInvalid},
		{name: "two numbers", input: StringPtr("123 456"), status: CellInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, status := ParseVotes(tc.input)
			if status != tc.status {
				t.Fatalf("status got %v want %v", status, tc.status)
			}
			if status == CellOK && got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParsePercentage(t *testing.T) {
	cases := []struct {
		name   string
		input  *string
		want   float64
		status CellStatus
	}{
		{name: "spaced percent", input: StringPtr("46.5 %"), want: 46.5, status: CellOK},
		{name: "tight percent", input: StringPtr("43.8%"), want: 43.8, status: CellOK},
		{name: "bare", input: StringPtr("6.3"), want: 6.3, status: CellOK},
		{name: "hundred", input: StringPtr("100.0 %"), want: 100, status: CellOK},
		{name: "zero", input: StringPtr("0.0 %"), want: 0, status: CellOK},
		{name: "nil", input: nil, status: CellAbsent},
		{name: "only sign", input: StringPtr(" % "), status: CellAbsent},
		{name: "over hundred", input: StringPtr("100.1 %"), status: CellInvalid},
		{name: "text", input: StringPtr("n/a %"), status: CellInvalid},
		{name: "votes", input: StringPtr("12,345"), status: CellInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, status := ParsePercentage(tc.input)
			if status != tc.status {
				t.Fatalf("status got %v want %v", status, tc.status)
			}
			if status == CellOK && got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestRound1(t *testing.T) {
	if got := Round1(70.0); got != 70.0 {
		t.Fatalf("got %v", got)
	}
	if got := Round1(100.0 / 3.0); got != 33.3 {
		t.Fatalf("got %v", got)
	}
	if got := Round1(200.0 / 3.0); got != 66.7 {
		t.Fatalf("got %v", got)
	}
}
