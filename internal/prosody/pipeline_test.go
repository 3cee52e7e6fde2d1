package prosody

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/metrics"
	"github.com/iabetor/prosody/internal/utterance"
)

// fullUtterance 构造每个词一个音节、每个音节一个音段的 utterance。
func fullUtterance(names ...string) *utterance.Utterance {
	u := utterance.New("")
	words := u.CreateRelation(utterance.RelWord)
	syls := u.CreateRelation(utterance.RelSyllable)
	sylStruct := u.CreateRelation(utterance.RelSylStructure)
	segs := u.CreateRelation(utterance.RelSegment)
	for _, n := range names {
		w := words.Append(nil)
		w.Set("name", cart.Str(n))
		syl := syls.Append(nil)
		syl.Set("name", cart.Str(n))
		seg := segs.Append(nil)
		seg.Set("name", cart.Str(n))
		sylStruct.Append(w.Contents()).AppendDaughter(syl).AppendDaughter(seg)
	}
	return u
}

func testVoice(t *testing.T) *Voice {
	return &Voice{
		Duration: mustTree(t, "TOTAL 1\nLEAF Float(0)\n").Named("duration"),
		Accent:   mustTree(t, "TOTAL 3\nNODE name = String(a) 2\nLEAF String(H*)\nLEAF String(NONE)\n").Named("accent"),
		Tone:     mustTree(t, "TOTAL 1\nLEAF String(NONE)\n").Named("tone"),
		Phrase:   mustTree(t, "TOTAL 3\nNODE name = String(m) 2\nLEAF String(BB)\nLEAF String(NB)\n").Named("phrase"),
		Stats:    testStats,
	}
}

func TestVoice_Modules(t *testing.T) {
	v := testVoice(t)
	mods, err := v.Modules(DefaultModules)
	require.NoError(t, err)
	require.Len(t, mods, 3)
	assert.Equal(t, "phraser", mods[0].Name())
	assert.Equal(t, "intonator", mods[1].Name())
	assert.Equal(t, "durator", mods[2].Name())

	_, err = v.Modules([]string{"robotiser"})
	assert.Error(t, err)

	_, err = (&Voice{}).Modules([]string{"durator"})
	assert.Error(t, err)
	_, err = (&Voice{}).Modules([]string{"intonator"})
	assert.Error(t, err)
	_, err = (&Voice{}).Modules([]string{"phraser"})
	assert.Error(t, err)
}

func TestPipeline_Process(t *testing.T) {
	m := metrics.New()
	mods, err := testVoice(t).Modules(DefaultModules, WithMetrics(m))
	require.NoError(t, err)
	p := NewPipeline(m, mods...)

	u := fullUtterance("m", "a", "sh", "a")
	require.NoError(t, p.Process(u))

	assert.Equal(t, [][]string{{"m"}, {"a", "sh", "a"}}, phraseGroups(u))
	accent, ok := u.Relation(utterance.RelSyllable).Head().Next().Get("accent")
	require.True(t, ok)
	assert.Equal(t, "H*", accent.String())
	assert.InDelta(t, 0.06+0.12+0.09+0.12, ends(t, u)[3], 1e-5)

	expected := `
# HELP prosody_utterances_total Number of utterances fully annotated.
# TYPE prosody_utterances_total counter
prosody_utterances_total 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "prosody_utterances_total"))
	// 四棵树各有一个 outcome="ok" 序列
	assert.Equal(t, 4, testutil.CollectAndCount(m.Registry, "prosody_interpret_total"))
}

func TestPipeline_StopsAtFirstFailingModule(t *testing.T) {
	mods, err := testVoice(t).Modules(DefaultModules)
	require.NoError(t, err)
	p := NewPipeline(nil, mods...)

	u := fullUtterance("m", "zh")
	err = p.Process(u)
	require.ErrorIs(t, err, ErrMissingStatistics)
	assert.Contains(t, err.Error(), u.ID)
	assert.Contains(t, err.Error(), "durator")
	// 前面的模块已经完成
	assert.NotNil(t, u.Relation(utterance.RelPhrase))
}

func TestPipeline_ProcessAll(t *testing.T) {
	mods, err := testVoice(t).Modules(DefaultModules)
	require.NoError(t, err)
	p := NewPipeline(metrics.New(), mods...)

	var utts []*utterance.Utterance
	for i := 0; i < 50; i++ {
		utts = append(utts, fullUtterance("m", "a", "sh"))
	}
	require.NoError(t, p.ProcessAll(context.Background(), utts, 4))
	for _, u := range utts {
		got := ends(t, u)
		assert.InDelta(t, 0.27, got[2], 1e-5)
	}
}

func TestPipeline_ProcessAllReportsFailure(t *testing.T) {
	mods, err := testVoice(t).Modules(DefaultModules)
	require.NoError(t, err)
	p := NewPipeline(nil, mods...)

	utts := []*utterance.Utterance{fullUtterance("m"), fullUtterance("zz"), fullUtterance("a")}
	err = p.ProcessAll(context.Background(), utts, 1)
	require.ErrorIs(t, err, ErrMissingStatistics)
	assert.Contains(t, err.Error(), utts[1].ID)
}

func TestPipeline_ProcessAllCancelled(t *testing.T) {
	mods, err := testVoice(t).Modules(DefaultModules)
	require.NoError(t, err)
	p := NewPipeline(nil, mods...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.ProcessAll(ctx, []*utterance.Utterance{fullUtterance("m")}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_SharedTreesAcrossGoroutines(t *testing.T) {
	v := testVoice(t)
	var utts []*utterance.Utterance
	for i := 0; i < 20; i++ {
		utts = append(utts, fullUtterance(fmt.Sprintf("w%d", i%3), "a"))
	}
	mods, err := v.Modules([]string{"phraser", "intonator"})
	require.NoError(t, err)
	require.NoError(t, NewPipeline(nil, mods...).ProcessAll(context.Background(), utts, 0))
	for _, u := range utts {
		assert.Equal(t, 1, u.Relation(utterance.RelPhrase).Len())
	}
}
