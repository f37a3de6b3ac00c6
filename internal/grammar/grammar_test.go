package grammar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludeme/ludx/internal/token"
	"github.com/ludeme/ludx/internal/types"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	st, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "1.3.14", st.Version())

	players, ok := st.Symbol("players")
	require.True(t, ok)
	assert.Equal(t, Symbol{Name: "players", Kind: Class, MinArgs: 1, MaxArgs: 1}, players)

	game, ok := st.Symbol("game")
	require.True(t, ok)
	assert.Equal(t, Unbounded, game.MaxArgs)

	no, ok := st.Symbol("no")
	require.True(t, ok)
	assert.Equal(t, Class, no.Kind)

	assert.True(t, st.IsDefined("Mover"))
	assert.Contains(t, st.Names(Terminal), "N")
	assert.NotContains(t, st.Names(Class), "Mover")
}

func TestResolve(t *testing.T) {
	t.Parallel()
	st, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name string
		kind Kind
		want []Symbol
	}{
		{`"Hex"`, Terminal, []Symbol{StringSymbol}},
		{"11", Terminal, []Symbol{IntSymbol}},
		{"-3", Terminal, []Symbol{IntSymbol}},
		{"0.5", Terminal, []Symbol{FloatSymbol}},
		{"True", Terminal, []Symbol{BooleanSymbol}},
		{"Mover", Terminal, []Symbol{{Name: "Mover", Kind: Terminal}}},
		{"players", Class, []Symbol{{Name: "players", Kind: Class, MinArgs: 1, MaxArgs: 1}}},
		{"", Array, []Symbol{ArraySymbol}},
		{"players", Terminal, nil},
		{"Mover", Class, nil},
		{"ludeme", Class, nil},
		{"move", Terminal, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.kind.String()+"/"+tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, st.Resolve(tt.name, tt.kind))
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "grammar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 2.0.0\nclasses:\n  - {name: foo, min: 1, max: 2}\n  - {name: bar}\nconstants: [Baz]\n"), 0o644))

	st, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", st.Version())
	assert.Equal(t, []string{"bar", "foo"}, st.Names(Class))
	assert.Equal(t, []string{"Baz"}, st.Names(Terminal))

	_, err = LoadYAML(strings.NewReader("classes: []\n"))
	assert.Error(t, err)
	_, err = LoadYAML(strings.NewReader("version: 1\nclasses:\n  - {min: 1}\n"))
	assert.Error(t, err)
	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSymbolAccepts(t *testing.T) {
	t.Parallel()
	s := Symbol{Name: "if", Kind: Class, MinArgs: 2, MaxArgs: 3}
	assert.False(t, s.Accepts(1))
	assert.True(t, s.Accepts(2))
	assert.True(t, s.Accepts(3))
	assert.False(t, s.Accepts(4))
	assert.True(t, Symbol{MinArgs: 0, MaxArgs: Unbounded}.Accepts(100))
}

func resolveAll(tree *Tree, g Grammar) {
	tree.Walk(func(it *Item) {
		it.Symbols = g.Resolve(it.Token.Name, it.Kind)
	})
}

func TestTreeParse(t *testing.T) {
	t.Parallel()
	st, err := Default()
	require.NoError(t, err)

	root := token.Populate(`(game "Hex" (players 2) (rules (play (move Add (to (sites Empty))))))`)
	require.NotNil(t, root)
	tree := BuildTree(root)
	resolveAll(tree, st)
	assert.True(t, tree.Parse())
	assert.Equal(t, -1, tree.DeepestFailureDepth())

	count := 0
	tree.Walk(func(*Item) { count++ })
	assert.Equal(t, root.Count(), count)
}

func TestTreeParseFailures(t *testing.T) {
	t.Parallel()
	st, err := Default()
	require.NoError(t, err)

	root := token.Populate(`(game "Hex" (players 2 3) (rules (play (move Add (to (florp Empty))))))`)
	require.NotNil(t, root)
	tree := BuildTree(root)
	resolveAll(tree, st)
	assert.False(t, tree.Parse())

	// (florp ...) sits at depth 5, (players ...) at depth 1.
	assert.Equal(t, 5, tree.DeepestFailureDepth())
	failures := tree.FailuresAt(5)
	require.Len(t, failures, 1)
	assert.Equal(t, "florp", failures[0].Token.Name)

	report := types.NewReport()
	tree.ReportFailuresAt(report, 1)
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, RuleParse, report.Errors()[0].Rule)
	assert.Equal(t, "(players ...) takes 1 arguments, found 2.", report.Errors()[0].Message)
}

func TestBuildTreeNil(t *testing.T) {
	t.Parallel()
	tree := BuildTree(nil)
	assert.Nil(t, tree.Root)
	assert.False(t, tree.Parse())
	assert.Equal(t, -1, tree.DeepestFailureDepth())
}
