package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/blaze/tdf"
)

func writeRule(w *tdf.Writer, name string, values []string) {
	w.String("NAME", name)
	w.StringList("VALU", values)
	w.GroupEnd()
}

func TestParseRuleSet(t *testing.T) {
	w := tdf.NewWriter()
	w.GroupStart("CRIT")
	w.GroupList("RLST", 3)
	writeRule(w, ruleNameMap, []string{"map2"})
	writeRule(w, ruleNameEnemy, []string{"abstain"})
	writeRule(w, ruleNameDifficulty, []string{"difficulty0"})
	w.GroupEnd()

	r := tdf.NewReader(w.Bytes())
	rs, err := ParseRuleSet(r)
	require.NoError(t, err)
	assert.Equal(t, "map2", rs.Map)
	assert.Equal(t, "abstain", rs.Enemy)
	assert.Equal(t, "difficulty0", rs.Difficulty)
}

func TestMatchesPrivacyGate(t *testing.T) {
	rs := RuleSet{}
	assert.True(t, rs.Matches(map[string]string{"ME3privacy": "PUBLIC"}))
	assert.True(t, rs.Matches(map[string]string{}))
	assert.False(t, rs.Matches(map[string]string{"ME3privacy": "PRIVATE"}))
}

func TestMatchesSlotsAbstainAndMissingAttribute(t *testing.T) {
	rs := RuleSet{Map: "map2", Enemy: "abstain", Difficulty: "difficulty0"}

	assert.True(t, rs.Matches(map[string]string{
		"ME3privacy":       "PUBLIC",
		"ME3map":           "map2",
		"ME3gameDifficulty": "difficulty0",
	}))

	assert.False(t, rs.Matches(map[string]string{
		"ME3privacy": "PUBLIC",
		"ME3map":     "map1",
	}))

	// missing ME3map attribute entirely is treated as a match
	assert.True(t, rs.Matches(map[string]string{
		"ME3privacy":        "PUBLIC",
		"ME3gameDifficulty": "difficulty0",
	}))
}

func TestMatchesTrimsWhitespace(t *testing.T) {
	rs := RuleSet{Map: " map2 "}
	assert.True(t, rs.Matches(map[string]string{"ME3map": "map2"}))
}
