// Package matchmaking implements rule set parsing and the privacy/attribute
// matcher games are tested against, grounded on
// original_source/core/src/game/rules.rs.
package matchmaking

import (
	"strings"

	"github.com/blazerelay/server/internal/blaze/tdf"
)

// abstainValue is the sentinel the client sends for a rule it doesn't care
// about; treated identically to an absent rule (spec.md §3).
const abstainValue = "abstain"

// Known rule names, mapped to the three fixed slots (spec.md §4.G).
const (
	ruleNameMap        = "ME3_gameMapMatchRule"
	ruleNameEnemy      = "ME3_gameEnemyTypeRule"
	ruleNameDifficulty = "ME3_gameDifficultyRule"
)

// Game attribute keys the rule set slots are tested against.
const (
	attrMap        = "ME3map"
	attrEnemy      = "ME3gameEnemyType"
	attrDifficulty = "ME3gameDifficulty"
	attrPrivacy    = "ME3privacy"
)

// RuleSet holds the three optional string criteria a matchmaking request
// may carry (spec.md §3). A zero value matches any public game.
type RuleSet struct {
	Map        string
	Enemy      string
	Difficulty string
}

func isAbstain(v string) bool {
	return v == "" || strings.EqualFold(v, abstainValue)
}

// ParseRuleSet decodes the client's CRIT group: an RLST list of (NAME,
// VALU[]) groups. Only the first VALU per rule is used; unrecognized names
// are accepted and ignored (spec.md §4.G).
func ParseRuleSet(r *tdf.Reader) (RuleSet, error) {
	var rs RuleSet
	err := r.ExpectGroup("CRIT", func(r *tdf.Reader) error {
		return r.ExpectGroupList("RLST", func(r *tdf.Reader) error {
			name, err := r.ExpectString("NAME")
			if err != nil {
				return err
			}
			values, err := r.ExpectStringList("VALU")
			if err != nil {
				return err
			}
			var first string
			if len(values) > 0 {
				first = values[0]
			}
			switch name {
			case ruleNameMap:
				rs.Map = first
			case ruleNameEnemy:
				rs.Enemy = first
			case ruleNameDifficulty:
				rs.Difficulty = first
			}
			return nil
		})
	})
	return rs, err
}

// Matches applies the privacy gate then per-slot equality, per spec.md
// §3 and §4.G: a missing attribute or missing rule slot is a match, and
// comparisons are byte-exact after trimming.
func (rs RuleSet) Matches(attrs map[string]string) bool {
	if privacy, ok := attrs[attrPrivacy]; ok && privacy != "PUBLIC" {
		return false
	}
	return matchSlot(rs.Map, attrs, attrMap) &&
		matchSlot(rs.Enemy, attrs, attrEnemy) &&
		matchSlot(rs.Difficulty, attrs, attrDifficulty)
}

func matchSlot(rule string, attrs map[string]string, key string) bool {
	if isAbstain(rule) {
		return true
	}
	v, ok := attrs[key]
	if !ok {
		return true
	}
	return strings.TrimSpace(v) == strings.TrimSpace(rule)
}
