package game

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestProjectMasksUnrevealedLetters(t *testing.T) {
	m := Match{
		ID:       "m1",
		Sentence: "HAVE A NICE DAY",
		Status:   StatusRunning,
		Revealed: LetterSet(0).With('A').With('Z'),
		Coins:    CoinsOf(80),
	}
	v := Project(m)
	if got := strings.Join(v.Grid, ""); got != "_A__ A ____ _A_" {
		t.Fatalf("grid = %q", got)
	}
	if len(v.Grid) != len(m.Sentence) {
		t.Fatalf("grid has %d cells for %d characters", len(v.Grid), len(m.Sentence))
	}
	if v.Sentence != "" || v.FinishedAt != nil {
		t.Fatalf("running view leaked terminal fields: %+v", v)
	}

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"HAVE", "NICE", `"sentence"`} {
		if strings.Contains(string(b), secret) {
			t.Fatalf("encoded running view contains %s: %s", secret, b)
		}
	}
}

func TestProjectDisclosesSolutionWhenTerminal(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	for _, status := range []Status{StatusWon, StatusAbandoned, StatusTimeout} {
		t.Run(string(status), func(t *testing.T) {
			v := Project(Match{Sentence: "CAT SAT", Status: status, FinishedAt: finished, Coins: Unlimited()})
			if v.Sentence != "CAT SAT" {
				t.Fatalf("expected solution, got %q", v.Sentence)
			}
			if v.FinishedAt == nil || !v.FinishedAt.Equal(finished) {
				t.Fatalf("finishedAt = %v", v.FinishedAt)
			}
			if strings.Join(v.Grid, "") != "___ ___" {
				t.Fatalf("terminal grid should still follow reveals, got %q", strings.Join(v.Grid, ""))
			}
		})
	}
}

func TestViewEncodesUnlimitedCoinsAsNull(t *testing.T) {
	b, err := json.Marshal(Project(Match{Sentence: "A", Status: StatusRunning, Coins: Unlimited()}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"remainingCoins":null`) {
		t.Fatalf("unexpected encoding %s", b)
	}
}
