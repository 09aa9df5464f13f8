// Package tree holds the XP and level rules of a connection's relationship tree.
package tree

import (
	"strings"

	"github.com/lovetree/lovetree/internal/models"
)

type Action string

const (
	ActionLogin        Action = "LOGIN"
	ActionNote         Action = "NOTE"
	ActionSurprise     Action = "SURPRISE"
	ActionMemory       Action = "MEMORY"
	ActionDream        Action = "DREAM"
	ActionDreamComment Action = "DREAM_COMMENT"
	ActionSpecialDay   Action = "SPECIAL_DAY"
	ActionTimeCapsule  Action = "TIME_CAPSULE"
)

const (
	XPPerLevel = 1000
	MaxLevel   = 3
	StartLevel = 1
)

var xpTable = map[Action]int{
	ActionLogin:        5,
	ActionNote:         10,
	ActionSurprise:     10,
	ActionMemory:       15,
	ActionDream:        15,
	ActionDreamComment: 5,
	ActionSpecialDay:   25,
	ActionTimeCapsule:  40,
}

// ParseAction normalizes s; unknown or empty values fall back to MEMORY.
func ParseAction(s string) Action {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := xpTable[a]; ok {
		return a
	}
	return ActionMemory
}

// XPFor returns the XP awarded for a; unknown actions earn MEMORY XP.
func XPFor(a Action) int {
	if xp, ok := xpTable[a]; ok {
		return xp
	}
	return xpTable[ActionMemory]
}

// LevelFor derives the level for a running XP total.
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return min(MaxLevel, xp/XPPerLevel+1)
}

// NextLevelXP is the total XP needed for the next level, or nil at MaxLevel.
func NextLevelXP(level int) *int {
	if level >= MaxLevel {
		return nil
	}
	n := XPPerLevel * level
	return &n
}

// Progress is the percentage of the way to the next level.
func Progress(xp, level int) int {
	if level >= MaxLevel {
		return 100
	}
	return min(100, (xp%XPPerLevel)/(XPPerLevel/100))
}

// Result is the outcome of a single award.
type Result struct {
	Tree                *models.Tree `json:"tree"`
	XPAdded             int          `json:"xpAdded"`
	LeveledUp           bool         `json:"leveledUp"`
	XPTotal             int          `json:"xpTotal"`
	NextLevelXP         *int         `json:"nextLevelXP"`
	ProgressToNextLevel int          `json:"progressToNextLevel"`
}

// Water applies the XP for action to t in place. The level is only
// recomputed below MaxLevel and never decreases.
func Water(t *models.Tree, action Action) Result {
	delta := XPFor(action)
	prev := t.GrowthLevel
	if prev < StartLevel {
		prev = StartLevel
	}

	t.GrowthXP += delta
	level := prev
	if prev < MaxLevel {
		level = max(prev, LevelFor(t.GrowthXP))
	}
	t.GrowthLevel = level

	return Result{
		Tree:                t,
		XPAdded:             delta,
		LeveledUp:           level > prev,
		XPTotal:             t.GrowthXP,
		NextLevelXP:         NextLevelXP(level),
		ProgressToNextLevel: Progress(t.GrowthXP, level),
	}
}

// View is a tree annotated with its progress fields.
type View struct {
	*models.Tree
	NextLevelXP         *int `json:"nextLevelXP"`
	ProgressToNextLevel int  `json:"progressToNextLevel"`
}

func Describe(t *models.Tree) View {
	return View{
		Tree:                t,
		NextLevelXP:         NextLevelXP(t.GrowthLevel),
		ProgressToNextLevel: Progress(t.GrowthXP, t.GrowthLevel),
	}
}
