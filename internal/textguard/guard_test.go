package textguard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"modmixx/internal/config"
	"modmixx/internal/featureflags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scorerStub struct {
	score float64
	err   error
	calls int
}

func (s *scorerStub) Score(_ context.Context, _ string) (float64, error) {
	s.calls++
	return s.score, s.err
}

func newTestGuard(scorer *scorerStub, flags string) *Guard {
	cfg := &config.Config{ToxicityThreshold: 0.7}
	return NewGuard(scorer, featureflags.NewManager(flags), cfg, nil)
}

func TestCheckTrimsAndPasses(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{score: 0.1}, "")

	out, err := g.Check(context.Background(), "bio", "  hello world  ", 100)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestCheckRejectsHTML(t *testing.T) {
	t.Parallel()
	scorer := &scorerStub{score: 0.0}
	g := newTestGuard(scorer, "")

	_, err := g.Check(context.Background(), "bio", "hi <b>there</b>", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML")
	assert.Zero(t, scorer.calls, "structural rejection must not reach the scorer")
}

func TestCheckRejectsDenylistedTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		term string
	}{
		{"click javascript:alert(1) now", "javascript:"},
		{"VBSCRIPT:msgbox", "vbscript:"},
		{"a onclick=do()", "onclick="},
		{"x ONERROR=boom", "onerror="},
		{"data:text/html;base64", "data:"},
		{"my deScripTion", "script"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.term, func(t *testing.T) {
			t.Parallel()
			g := newTestGuard(&scorerStub{score: 0.0}, "")
			_, err := g.Check(context.Background(), "bio", tt.text, 200)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.term)
		})
	}
}

func TestCheckRejectsToxicText(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{score: 0.95}, "")

	_, err := g.Check(context.Background(), "comment", "some vile text", 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comment")
}

func TestCheckScoreAtThresholdPasses(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{score: 0.7}, "")

	out, err := g.Check(context.Background(), "comment", "borderline", 1000)
	require.NoError(t, err)
	assert.Equal(t, "borderline", out)
}

func TestCheckFailsOpenOnScorerError(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{err: errors.New("timeout")}, "")

	out, err := g.Check(context.Background(), "comment", "hello", 1000)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCheckStructuralRulesSurviveScorerOutage(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{err: errors.New("timeout")}, "")

	_, err := g.Check(context.Background(), "bio", "javascript:alert(1)", 1000)
	assert.Error(t, err)
}

func TestCheckDisabledFlagSkipsToxicityOnly(t *testing.T) {
	t.Parallel()
	scorer := &scorerStub{score: 0.99}
	g := newTestGuard(scorer, "text_moderation=off")

	out, err := g.Check(context.Background(), "comment", "anything goes", 1000)
	require.NoError(t, err)
	assert.Equal(t, "anything goes", out)
	assert.Zero(t, scorer.calls)

	_, err = g.Check(context.Background(), "comment", "<script>x</script>", 1000)
	assert.Error(t, err, "markup check is not behind the flag")
}

func TestCheckRejectsOverlongText(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{score: 0.0}, "")

	_, err := g.Check(context.Background(), "bio", strings.Repeat("a", 101), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too long")
}

func TestCheckEmptyTextPasses(t *testing.T) {
	t.Parallel()
	scorer := &scorerStub{score: 0.99}
	g := newTestGuard(scorer, "")

	out, err := g.Check(context.Background(), "bio", "   ", 100)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, scorer.calls)
}

func TestCheckUsername(t *testing.T) {
	t.Parallel()
	g := newTestGuard(&scorerStub{score: 0.0}, "")

	out, err := g.CheckUsername(context.Background(), "MixMaster", 30)
	require.NoError(t, err)
	assert.Equal(t, "mixmaster", out)

	_, err = g.CheckUsername(context.Background(), "mix master", 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spaces")

	_, err = g.CheckUsername(context.Background(), "   ", 30)
	assert.Error(t, err)
}

func TestCheckNilScorerSkipsToxicity(t *testing.T) {
	t.Parallel()
	g := NewGuard(nil, featureflags.NewManager(""), &config.Config{ToxicityThreshold: 0.7}, nil)

	out, err := g.Check(context.Background(), "bio", "hello", 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}
