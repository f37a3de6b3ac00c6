package expand

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludeme/ludx/internal/define"
	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/token"
	"github.com/ludeme/ludx/internal/types"
)

const hex = `(game "Hex"
    (players 2)
    (equipment {
        (board (hex Diamond 11))
        (piece "Marker" Each)
    })
    (rules
        (play (move Add (to (sites Empty))))
        (end (if (is Connected Mover) (result Mover Win)))
    )
)`

const hexExpanded = `(game "Hex" (players 2) (equipment {(board (hex Diamond 11)) (piece "Marker" Each)}) (rules (play (move Add (to (sites Empty)))) (end (if (is Connected Mover) (result Mover Win)))))`

func newRun(opts ...Option) *run {
	return &run{
		Expander: New(nil, opts...),
		d:        desc.New(""),
		sel:      desc.NewUserSelections(),
		report:   types.NewReport(),
	}
}

func expand(t *testing.T, e *Expander, raw string, sel *desc.UserSelections) (*desc.Description, *types.Report, error) {
	t.Helper()
	d := desc.New(raw)
	report := types.NewReport()
	err := e.Expand(d, sel, report)
	return d, report, err
}

func TestExpandIsNoOpWithoutMacros(t *testing.T) {
	t.Parallel()
	e := New(nil)

	d, report, err := expand(t, e, hex, nil)
	require.NoError(t, err)
	assert.False(t, report.IsError())
	if diff := cmp.Diff(hexExpanded, d.Expanded); diff != "" {
		t.Errorf("expanded text mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, d.Tokens)
	assert.Equal(t, token.Class, d.Tokens.Type)
	assert.Equal(t, "game", d.Tokens.Name)

	again, _, err := expand(t, e, d.Expanded, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(d.Expanded, again.Expanded); diff != "" {
		t.Errorf("re-expansion is not a fixed point (-first +second):\n%s", diff)
	}
}

func TestExpandStripsComments(t *testing.T) {
	t.Parallel()
	raw := "// header\n(game \"Hex\" // trailing\n (players 2) (rules (play \"//not a comment\")))"
	d, _, err := expand(t, New(nil), raw, nil)
	require.NoError(t, err)
	assert.Equal(t, `(game "Hex" (players 2) (rules (play "//not a comment")))`, d.Expanded)
}

func TestExpandMutualRecursionFails(t *testing.T) {
	t.Parallel()
	raw := `(define "A" ("B"))
(define "B" ("A"))
(game "Loop" (players 2) (rules (play ("A"))))`

	e := New(nil, WithLimits(Limits{MaxIterations: 50}))
	_, report, err := expand(t, e, raw, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSuspectedRecursion)
	assert.True(t, report.IsError())
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, RuleDefines, report.Errors()[0].Rule)
}

func TestExpandSelfRecursionFails(t *testing.T) {
	t.Parallel()
	raw := `(define "Grow" (grow ("Grow")))
(game "Loop" (players 2) (rules (play ("Grow"))))`
	_, _, err := expand(t, New(nil), raw, nil)
	assert.ErrorIs(t, err, ErrSuspectedRecursion)
}

func TestExpandCharacterCap(t *testing.T) {
	t.Parallel()
	raw := `(define "A" (a "B" "B"))
(define "B" (b "A" "A"))
(game "Loop" (players 2) (rules (play "A")))`
	e := New(nil, WithLimits(Limits{MaxCharacters: 500}))
	_, _, err := expand(t, e, raw, nil)
	assert.ErrorIs(t, err, ErrSuspectedRecursion)
}

func TestExpandRanges(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascending", "(sites {3..7})", "(sites {3 4 5 6 7})"},
		{"descending", "(sites {7..3})", "(sites {7 6 5 4 3})"},
		{"adjacent", "(sites {1..2})", "(sites {1 2})"},
		{"equal endpoints", "(sites {3..3})", "(sites {3 3})"},
		{"equal single digit", "(a 1..1)", "(a 1 1)"},
		{"multi digit", "(sites {9..12})", "(sites {9 10 11 12})"},
		{"chained", "1..3..5", "1 2 3 4 5"},
		{"inside square brackets", "[1..3] 1..3", "[1..3] 1 2 3"},
		{"not a range", "(value 0.5) (a ..b)", "(value 0.5) (a ..b)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := newRun().expandRanges(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandRangeTooLarge(t *testing.T) {
	t.Parallel()
	_, err := newRun().expandRanges("(sites {1..5000})")
	assert.ErrorIs(t, err, ErrRangeTooLarge)

	_, err = newRun(WithLimits(Limits{MaxRange: 3})).expandRanges("{1..5}")
	assert.ErrorIs(t, err, ErrRangeTooLarge)
}

func TestExpandSiteRanges(t *testing.T) {
	t.Parallel()
	r := newRun()

	got, err := r.expandSiteRanges(`(sites {"A1".."B2"})`)
	require.NoError(t, err)
	assert.Equal(t, `(sites {"A1" "A2" "B1" "B2"})`, got)

	got, err = r.expandSiteRanges(`{"C1".."A1"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"A1" "B1" "C1"}`, got)

	got, err = r.expandSiteRanges(`["A1".."B2"] "A1".."A2"`)
	require.NoError(t, err)
	assert.Equal(t, `["A1".."B2"] "A1" "A2"`, got)

	_, err = newRun(WithLimits(Limits{MaxRange: 4})).expandSiteRanges(`"A1".."C3"`)
	assert.ErrorIs(t, err, ErrRangeTooLarge)
}

func TestExpandMacroSubstitution(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"argument", `(define "Foo" (Bar #1)) (game "G" ("Foo" (Baz)))`, `(game "G" (Bar (Baz)))`},
		{"null argument", `(define "Foo" (Bar #1)) (game "G" ("Foo" ~))`, `(game "G" (Bar ))`},
		{"missing argument", `(define "Foo" (Bar #1 #2)) (game "G" ("Foo" x))`, `(game "G" (Bar x ))`},
		{"bare call", `(define "Win" (result Mover Win)) (game "G" (end "Win"))`, `(game "G" (end (result Mover Win)))`},
		{"named argument", `(define "Step" (move Step #1)) (game "G" ("Step" directions:{N S}))`, `(game "G" (move Step directions:{N S}))`},
		{"nested", `(define "Inner" (in #1)) (define "Outer" (out ("Inner" #1))) (game "G" ("Outer" 3))`, `(game "G" (out (in 3)))`},
		{"protected", `(define "G" (oops)) (game "G" (players 2))`, `(game "G" (players 2))`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := newRun().expandDefines(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(got))
		})
	}
}

func TestExpandRecordsInstances(t *testing.T) {
	t.Parallel()
	r := newRun()
	_, err := r.expandDefines(`(define "Foo" (Bar #1)) (game "G" ("Foo" 1) ("Foo" 2))`)
	require.NoError(t, err)
	require.Contains(t, r.d.Defines, `"Foo"`)
	assert.Equal(t, []string{"(Bar 1)", "(Bar 2)"}, r.d.Defines[`"Foo"`].Instances())
}

func TestExpandDefineErrors(t *testing.T) {
	t.Parallel()
	_, err := newRun().expandDefines(`(define "A" (a)) (define "A" (b)) (game "G")`)
	assert.ErrorIs(t, err, define.ErrDuplicateDefine)

	_, err = newRun().expandDefines(`(define "A" (a) (game "G")`)
	assert.ErrorIs(t, err, define.ErrMalformedDefine)

	_, err = newRun().expandDefines(`(define "A" (a #1)) (game "G" ("A" (b)`)
	assert.ErrorIs(t, err, ErrMalformedCall)
}

func TestExpandLowercaseDefineWarns(t *testing.T) {
	t.Parallel()
	r := newRun()
	_, err := r.expandDefines(`(define "win" (result Mover Win)) (game "G" (end "win"))`)
	require.NoError(t, err)
	require.Len(t, r.report.Warnings(), 1)
	assert.Contains(t, r.report.Warnings()[0].Message, `"win"`)
}

func TestExpandLibraryDefines(t *testing.T) {
	t.Parallel()
	e := New(define.DefaultRegistry(nil))
	raw := `(game "Stepper"
    (players 2)
    (equipment {("SquareBoard" 3) (piece "Disc" Each)})
    (rules
        (play ("StepToEmpty" Orthogonal))
        (end ("NoMoves" Loss))
    )
)`
	d, report, err := expand(t, e, raw, nil)
	require.NoError(t, err, report.String())
	want := `(game "Stepper" (players 2) (equipment {(board (square 3)) (piece "Disc" Each)}) (rules (play (move Step Orthogonal (to if:(is Empty (to))))) (end (no Moves Loss))))`
	if diff := cmp.Diff(want, d.Expanded); diff != "" {
		t.Errorf("expanded text mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, d.Defines, `"StepToEmpty"`)
}

func TestExpandLocalDefineShadowsLibrary(t *testing.T) {
	t.Parallel()
	e := New(define.DefaultRegistry(nil))
	raw := `(define "PlaceEmpty" (move Add (to (sites Board))))
(game "Shadow" (players 2) (rules (play "PlaceEmpty")))`
	d, _, err := expand(t, e, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, `(game "Shadow" (players 2) (rules (play (move Add (to (sites Board))))))`, d.Expanded)
}

func TestExpandLocalDefineWrapsLibrary(t *testing.T) {
	t.Parallel()
	e := New(define.DefaultRegistry(nil))
	raw := `(define "BlockWin" (or "BlockWin" (no Pieces Next)))
(game "Wrapped" (players 2) (rules (end (if "BlockWin" (result Mover Win)))))`
	d, _, err := expand(t, e, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, `(game "Wrapped" (players 2) (rules (end (if (or (stalemated Next) (no Pieces Next)) (result Mover Win)))))`, d.Expanded)
}

func TestExpandLibraryLeavesMetadataAlone(t *testing.T) {
	t.Parallel()
	e := New(define.DefaultRegistry(nil))
	raw := `(game "PlaceEmpty" (players 2) (rules (play "PlaceEmpty")))
(metadata (info {(rules "PlaceEmpty")}))`
	d, _, err := expand(t, e, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, `(game "PlaceEmpty" (players 2) (rules (play (move Add (to (sites Empty))))))`, d.Expanded)
	assert.Equal(t, `(metadata (info {(rules "PlaceEmpty")}))`, d.Metadata)
}

func TestExpandAIDefine(t *testing.T) {
	t.Parallel()
	e := New(define.DefaultRegistry(nil))
	raw := hex + "\n(metadata (ai \"Hex_ai\"))"
	d, report, err := expand(t, e, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, `(metadata (ai (bestAgent "MCTS")))`, d.Metadata)
	assert.Contains(t, report.Logs(), `AI define "Hex_ai" expanded.`)
}

const sized = `(game "Sized"
    (players 2)
    (equipment {(board (square <Size:dim>)) (piece "Disc" Each)})
    (rules (play (move Add (to (sites Empty)))))
)
(option "Board Size" <Size> args:{ <dim> } {
    (item "5x5" <5> "Small board.")
    (item "7x7" <7> "Large board.")*
})`

func TestExpandOptionSelection(t *testing.T) {
	t.Parallel()
	e := New(nil)

	d, report, err := expand(t, e, sized, desc.NewUserSelections("Board Size/5x5"))
	require.NoError(t, err)
	assert.Contains(t, d.Expanded, "(square 5)")
	assert.NotContains(t, d.Expanded, "7")
	assert.NotContains(t, d.Expanded, "option")
	assert.Equal(t, []string{"Board Size/5x5"}, d.ActiveOptions)
	assert.Contains(t, report.Logs(), "Option Board Size/5x5 selected.")
	require.Equal(t, 1, d.Options.Len())

	d, report, err = expand(t, e, sized, nil)
	require.NoError(t, err)
	assert.Contains(t, d.Expanded, "(square 7)")
	assert.Empty(t, report.Warnings())
}

func TestExpandUnknownOptionRevertsToDefaults(t *testing.T) {
	t.Parallel()
	sel := desc.NewUserSelections("Board Size/4x4")
	d, report, err := expand(t, New(nil), sized, sel)
	require.NoError(t, err)
	assert.Contains(t, d.Expanded, "(square 7)")
	require.Len(t, report.Warnings(), 1)
	assert.Contains(t, report.Warnings()[0].Message, "reverting to default options")
	assert.Equal(t, []string{"Board Size/7x7"}, sel.Options)
}

func TestExpandSelfReferentialOption(t *testing.T) {
	t.Parallel()
	raw := `(game "Loop" (players <Players>)) (option "Players" <Players> { (item "2" <(x <Players>)> "") })`
	_, _, err := expand(t, New(nil, WithLimits(Limits{MaxOptionExpansions: 5})), raw, nil)
	assert.ErrorIs(t, err, ErrSelfReferentialOption)
}

const guarded = `(game "Guarded"
    (players 2)
    (equipment {(board (square <Size>)) (piece "Disc" Each)})
    (rules (play (move Add (to (sites Empty)))))
)
(option "Board Size" <Size> { (item "5x5" <5> "") (item "7x7" <7> "")* })
(rulesets {
    (ruleset "Ruleset/Small (Suggested)" { "Board Size/5x5" })
    (ruleset "Ruleset/Large" { "Board Size/7x7" })*
})
(metadata
    (info {
        (useFor "Ruleset/Small (Suggested)" (rules "Small board."))
        (useFor { "Board Size/7x7" } (rules "Seven."))
        (source "Unknown")
    })
)`

func TestExpandMetadataGuards(t *testing.T) {
	t.Parallel()
	e := New(nil)

	sel := desc.NewUserSelections("Board Size/5x5")
	d, report, err := expand(t, e, guarded, sel)
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Ruleset)
	assert.Contains(t, report.Logs(), "Ruleset Ruleset/Small (Suggested) auto-selected.")
	require.Len(t, d.Rulesets, 2)
	assert.Equal(t, 1, d.Rulesets[1].Priority)
	assert.Equal(t, `(metadata (info {(rules "Small board.") (source "Unknown")}))`, d.Metadata)
	assert.NotContains(t, d.Expanded, "metadata")
	assert.NotContains(t, d.Expanded, "rulesets")

	sel = desc.NewUserSelections()
	d, _, err = expand(t, e, guarded, sel)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Ruleset)
	assert.Equal(t, `(metadata (info {(rules "Seven.") (source "Unknown")}))`, d.Metadata)
}

func TestExpandChosenRulesetSetsOptions(t *testing.T) {
	t.Parallel()
	e := New(nil)

	sel := desc.NewUserSelections()
	sel.Ruleset = 0
	d, report, err := expand(t, e, guarded, sel)
	require.NoError(t, err)
	assert.Contains(t, d.Expanded, "(square 5)")
	assert.Equal(t, []string{"Board Size/5x5"}, d.ActiveOptions)
	assert.Equal(t, `(metadata (info {(rules "Small board.") (source "Unknown")}))`, d.Metadata)
	assert.Contains(t, report.Logs(), "Ruleset Ruleset/Small (Suggested) selected.")
	assert.Empty(t, report.Warnings())
	require.Len(t, d.Rulesets, 2)

	// the ruleset's options win over user options of the same category
	sel = desc.NewUserSelections("Board Size/5x5")
	sel.Ruleset = 1
	d, _, err = expand(t, e, guarded, sel)
	require.NoError(t, err)
	assert.Contains(t, d.Expanded, "(square 7)")
	assert.Equal(t, []string{"Board Size/7x7"}, sel.Options)
	assert.Equal(t, `(metadata (info {(rules "Seven.") (source "Unknown")}))`, d.Metadata)
}

func TestExpandInvalidRulesetFallsBackToAutoSelection(t *testing.T) {
	t.Parallel()
	sel := desc.NewUserSelections("Board Size/5x5")
	sel.Ruleset = 7
	d, report, err := expand(t, New(nil), guarded, sel)
	require.NoError(t, err)
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, RuleRulesets, report.Warnings()[0].Rule)
	assert.Contains(t, report.Warnings()[0].Message, "Ruleset 7 does not exist")
	assert.Equal(t, 0, sel.Ruleset)
	assert.Contains(t, d.Expanded, "(square 5)")
	assert.Contains(t, d.Metadata, "Small board.")
}

const either = `(game "Either"
    (players 2)
    (equipment {(board (square <Size>)) (piece "Disc" Each)})
)
(option "Board Size" <Size> { (item "3x3" <3> "") (item "5x5" <5> "") (item "7x7" <7> "")* })
(rulesets {
    (ruleset "Ruleset/Small" { "Board Size/5x5" })
    (ruleset "Ruleset/Large" { "Board Size/7x7" })
    (ruleset "Ruleset/Tiny" { "Board Size/3x3" })
})
(metadata (info { (useFor { "Ruleset/Small" "Ruleset/Large" } (rules "Either.")) (source "Unknown") }))`

func TestExpandRulesetRequirementsAreAlternatives(t *testing.T) {
	t.Parallel()
	e := New(nil)

	for _, tt := range []struct {
		ruleset int
		kept    bool
	}{
		{0, true},
		{1, true},
		{2, false},
	} {
		sel := desc.NewUserSelections()
		sel.Ruleset = tt.ruleset
		d, _, err := expand(t, e, either, sel)
		require.NoError(t, err)
		if tt.kept {
			assert.Contains(t, d.Metadata, "Either.", "ruleset %d", tt.ruleset)
		} else {
			assert.NotContains(t, d.Metadata, "Either.", "ruleset %d", tt.ruleset)
		}
		assert.Contains(t, d.Metadata, "Unknown")
	}
}

func TestExpandUnknownRequirement(t *testing.T) {
	t.Parallel()
	raw := `(game "G" (players 2)) (metadata (useFor "Ruleset/Huge" (rules "x")))`
	_, report, err := expand(t, New(nil), raw, nil)
	assert.ErrorIs(t, err, ErrUnknownRequirement)
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, RuleMetadata, report.Errors()[0].Rule)
}

func TestExpandIgnoresExtraRulesetBlocks(t *testing.T) {
	t.Parallel()
	raw := `(game "G" (players 2)) (rulesets { (ruleset "Ruleset/A" {}) }) (rulesets { (ruleset "Ruleset/B" {}) })`
	d, report, err := expand(t, New(nil), raw, nil)
	require.NoError(t, err)
	require.Len(t, d.Rulesets, 1)
	assert.Equal(t, "Ruleset/A", d.Rulesets[0].Heading)
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, `(game "G" (players 2))`, d.Expanded)
}

func TestExpandLogsRulesetVariations(t *testing.T) {
	t.Parallel()
	raw := `(game "G" (players 2)) (rulesets { (ruleset "Ruleset/A" { "Players/2" } variations:{ "Players/3" "Board Size/5x5" }) (ruleset "Ruleset/B" {}) })`
	_, report, err := expand(t, New(nil), raw, nil)
	require.NoError(t, err)
	assert.Contains(t, report.Logs(), "Ruleset Ruleset/A varies Board Size, Players.")
	for _, line := range report.Logs() {
		assert.NotContains(t, line, "Ruleset/B varies")
	}
}

func TestCleanUp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace", "(a\n\t  b   )", "(a b)"},
		{"inside braces", "{  (a)  (b)  }", "{(a) (b)}"},
		{"colons", "(to if::(x))", "(to if:(x))"},
		{"doubled brackets", "(a ((b c)) d)", "(a (b c) d)"},
		{"tripled brackets", "(((b)))", "(b)"},
		{"legitimate doubled open", "((a) b)", "((a) b)"},
		{"in string", `(a "((b)) ")`, `(a "((b)) ")`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := newRun().cleanUp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := newRun().cleanUp("(a ((b)")
	assert.ErrorIs(t, err, ErrDoubledBracket)
}

type nilBuilder struct{}

func (nilBuilder) Populate(string) *token.Token { return nil }

func TestExpandTokenizeFailure(t *testing.T) {
	t.Parallel()
	_, report, err := expand(t, New(nil, WithTokenBuilder(nilBuilder{})), hex, nil)
	assert.ErrorIs(t, err, ErrNoTokens)
	assert.True(t, report.IsError())

	_, _, err = expand(t, New(nil), "   // nothing here\n", nil)
	assert.ErrorIs(t, err, ErrNoTokens)
}

func TestExpandStopsOnEarlierError(t *testing.T) {
	t.Parallel()
	report := types.NewReport()
	report.AddError("quotes", "broken")
	err := New(nil).Expand(desc.New(hex), nil, report)
	require.Error(t, err)
	var d *types.Diagnostic
	assert.False(t, errors.As(err, &d))
}
