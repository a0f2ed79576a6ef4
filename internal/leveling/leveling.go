// Package leveling maps completed-task impact to XP and lifetime XP to levels.
//
// XP is stored as a lifetime total. Level and in-level progress are derived
// from that one number, so recomputing them is always safe.
package leveling

import "teamops/internal/domain"

// XPPerLevel is the flat threshold between consecutive levels.
const XPPerLevel = 200

// MaxLevel is the highest level with its own title.
const MaxLevel = 10

var titles = [MaxLevel]string{
	"Rookie",
	"Apprentice",
	"Contributor",
	"Operator",
	"Specialist",
	"Expert",
	"Veteran",
	"Elite",
	"Master",
	"Legend",
}

// AwardFor returns the XP granted for completing a task of the given impact.
func AwardFor(impact string) int {
	switch impact {
	case domain.ImpactSmall:
		return 5
	case domain.ImpactMedium:
		return 10
	case domain.ImpactLarge:
		return 20
	default:
		return 0
	}
}

func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// Progress is the XP earned inside the current level, in [0, XPPerLevel).
func Progress(xp int) int {
	if xp < 0 {
		return 0
	}
	return xp % XPPerLevel
}

// Percent is Progress scaled to 0..100 for progress bars.
func Percent(xp int) int {
	return Progress(xp) * 100 / XPPerLevel
}

// Title returns the display title for a level. Levels past MaxLevel keep the last title.
func Title(level int) string {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return titles[level-1]
}

// Standing is the derived view of a lifetime XP total.
type Standing struct {
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	ToNext   int    `json:"to_next"`
	Percent  int    `json:"percent"`
}

func StandingFor(xp int) Standing {
	if xp < 0 {
		xp = 0
	}
	level := LevelFor(xp)
	return Standing{
		XP:       xp,
		Level:    level,
		Title:    Title(level),
		Progress: Progress(xp),
		ToNext:   XPPerLevel - Progress(xp),
		Percent:  Percent(xp),
	}
}

// Award is the result of applying a completion to a lifetime total.
type Award struct {
	Delta     int
	Before    Standing
	After     Standing
	LeveledUp bool
}

// Apply adds the impact award to xp.
func Apply(xp int, impact string) Award {
	delta := AwardFor(impact)
	before := StandingFor(xp)
	after := StandingFor(xp + delta)
	return Award{
		Delta:     delta,
		Before:    before,
		After:     after,
		LeveledUp: after.Level > before.Level,
	}
}
