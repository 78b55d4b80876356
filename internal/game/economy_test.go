package game

import (
	"errors"
	"testing"
)

func TestCostOf(t *testing.T) {
	tiers := map[int]string{
		10: "AEIOU",
		5:  "TNSRHDL",
		4:  "CMFGP",
		3:  "BYW",
		2:  "KV",
		1:  "XJQZ",
	}
	seen := 0
	for cost, letters := range tiers {
		for i := 0; i < len(letters); i++ {
			seen++
			if got := CostOf(letters[i]); got != cost {
				t.Fatalf("CostOf(%c) = %d, want %d", letters[i], got, cost)
			}
		}
	}
	if seen != 26 {
		t.Fatalf("tiers cover %d letters, want 26", seen)
	}
	if CostOf('a') != 0 || CostOf(' ') != 0 {
		t.Fatal("non A-Z bytes should cost 0")
	}
}

func TestIsVowel(t *testing.T) {
	for l := byte('A'); l <= 'Z'; l++ {
		want := l == 'A' || l == 'E' || l == 'I' || l == 'O' || l == 'U'
		if IsVowel(l) != want {
			t.Fatalf("IsVowel(%c) = %v", l, !want)
		}
		if want && CostOf(l) != VowelCost {
			t.Fatalf("vowel %c should cost %d", l, VowelCost)
		}
	}
}

func TestNormalizeLetter(t *testing.T) {
	tests := []struct {
		in   string
		want byte
		err  bool
	}{
		{in: "a", want: 'A'},
		{in: " z ", want: 'Z'},
		{in: "M", want: 'M'},
		{in: "", err: true},
		{in: "ab", err: true},
		{in: "7", err: true},
		{in: "ß", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeLetter(tc.in)
			if tc.err {
				if !errors.Is(err, ErrMalformedLetter) {
					t.Fatalf("expected ErrMalformedLetter, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("NormalizeLetter(%q) = %c, %v", tc.in, got, err)
			}
		})
	}
}

func TestLetterSetRoundTrip(t *testing.T) {
	s := LetterSet(0).With('T').With('A').With('C').With('a')
	if s.String() != "ACT" || s.Len() != 3 {
		t.Fatalf("unexpected set %q (%d)", s, s.Len())
	}
	parsed, err := ParseLetterSet("A,C,T")
	if err != nil || parsed != s {
		t.Fatalf("ParseLetterSet = %s, %v", parsed, err)
	}
	if _, err := ParseLetterSet("a"); err == nil {
		t.Fatal("lowercase should not parse")
	}
}

func TestCoinsDebitAndJSON(t *testing.T) {
	if d := CoinsOf(10).Debit(CoinsOf(6)); d != 4 {
		t.Fatalf("debit = %d, want 4", d)
	}
	if d := Unlimited().Debit(Unlimited()); d != 0 {
		t.Fatalf("unlimited debit = %d", d)
	}
	if CoinsOf(-3).Amount() != 0 {
		t.Fatal("negative balances must clamp to zero")
	}
	b, _ := Unlimited().MarshalJSON()
	if string(b) != "null" {
		t.Fatalf("unlimited marshals to %s", b)
	}
	var c Coins
	if err := c.UnmarshalJSON([]byte("37")); err != nil || c.Amount() != 37 {
		t.Fatalf("unmarshal = %s, %v", c, err)
	}
	if CoinsFromNullable(CoinsOf(5).Nullable()).Amount() != 5 || !CoinsFromNullable(nil).IsUnlimited() {
		t.Fatal("nullable mapping is not symmetric")
	}
}
