package leveling

import "testing"

func TestAwardTable(t *testing.T) {
	cases := map[string]int{"small": 5, "medium": 10, "large": 20, "": 0, "huge": 0}
	for impact, want := range cases {
		if got := AwardFor(impact); got != want {
			t.Errorf("AwardFor(%q) = %d, want %d", impact, got, want)
		}
	}
}

func TestLevelAndProgress(t *testing.T) {
	cases := []struct {
		xp, level, progress int
	}{
		{0, 1, 0},
		{199, 1, 199},
		{200, 2, 0},
		{415, 3, 15},
		{-10, 1, 0},
	}
	for _, c := range cases {
		if got := LevelFor(c.xp); got != c.level {
			t.Errorf("LevelFor(%d) = %d, want %d", c.xp, got, c.level)
		}
		if got := Progress(c.xp); got != c.progress {
			t.Errorf("Progress(%d) = %d, want %d", c.xp, got, c.progress)
		}
	}
	if Percent(100) != 50 {
		t.Fatalf("expected 50%%, got %d", Percent(100))
	}
}

func TestTitleClamps(t *testing.T) {
	if Title(1) != "Rookie" || Title(0) != "Rookie" {
		t.Fatalf("unexpected first title %q", Title(1))
	}
	if Title(10) != "Legend" || Title(42) != "Legend" {
		t.Fatalf("expected Legend past max level, got %q", Title(42))
	}
	seen := map[string]bool{}
	for lvl := 1; lvl <= MaxLevel; lvl++ {
		seen[Title(lvl)] = true
	}
	if len(seen) != MaxLevel {
		t.Fatalf("expected %d distinct titles, got %d", MaxLevel, len(seen))
	}
}

func TestApplyCrossesLevel(t *testing.T) {
	a := Apply(190, "large")
	if a.Delta != 20 || a.After.XP != 210 {
		t.Fatalf("unexpected award %+v", a)
	}
	if !a.LeveledUp || a.After.Level != 2 || a.After.Progress != 10 {
		t.Fatalf("expected level up into level 2, got %+v", a.After)
	}
	if a.After.ToNext != 190 {
		t.Fatalf("unexpected to_next %d", a.After.ToNext)
	}
	if Apply(0, "small").LeveledUp {
		t.Fatalf("small award from zero should not level up")
	}
}
