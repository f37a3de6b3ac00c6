// Package desc holds the data one expansion run works on: the description
// itself, the option and ruleset catalogues it declares, and the user's
// selections among them.
package desc

import (
	"github.com/ludeme/ludx/internal/define"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/token"
)

// NoRuleset marks that no ruleset is selected.
const NoRuleset = -1

// Description is owned by a single expansion run and is filled in place by
// the expander stages.
type Description struct {
	Raw      string
	Expanded string
	Metadata string

	Options  *GameOptions
	Rulesets []*Ruleset

	// Defines maps a macro tag to every instantiation made during the run.
	Defines map[string]*define.Instances

	// ActiveOptions lists the "Category/Item" paths in effect after option
	// selection, one per category.
	ActiveOptions []string

	Tokens *token.Token
}

// New returns a description of raw text.
func New(raw string) *Description {
	return &Description{
		Raw:     raw,
		Options: NewGameOptions(),
		Defines: make(map[string]*define.Instances),
	}
}

// GameName returns the name given by the outermost (game ...) or
// (match ...) clause, preferring the expanded text once there is one.
func (d *Description) GameName() string {
	if d.Expanded != "" {
		if name := GameName(d.Expanded); name != "" {
			return name
		}
	}
	return GameName(text.StripComments(d.Raw))
}

// GameName returns the first quoted literal of the first (game ...) or
// (match ...) clause in s.
func GameName(s string) string {
	for _, keyword := range []string{"game", "match"} {
		at := text.IndexClause(s, keyword, 0)
		if at < 0 {
			continue
		}
		if name, ok := text.FirstQuoted(s[at:]); ok {
			return name
		}
	}
	return ""
}

// Instances returns the instantiation history of tag, creating it for d.
func (d *Description) Instances(def *define.Define) *define.Instances {
	inst, ok := d.Defines[def.Tag()]
	if !ok {
		inst = define.NewInstances(def)
		d.Defines[def.Tag()] = inst
	}
	return inst
}

// RulesetByHeading returns the index of the named ruleset or NoRuleset.
func (d *Description) RulesetByHeading(heading string) int {
	for i, rs := range d.Rulesets {
		if rs.Heading == heading {
			return i
		}
	}
	return NoRuleset
}

// AutoSelectRuleset returns the first ruleset whose option paths are all
// active, or NoRuleset.
func (d *Description) AutoSelectRuleset(active []string) int {
	set := make(map[string]bool, len(active))
	for _, a := range active {
		set[a] = true
	}
	for i, rs := range d.Rulesets {
		if len(rs.Options) == 0 {
			continue
		}
		all := true
		for _, opt := range rs.Options {
			if !set[opt] {
				all = false
				break
			}
		}
		if all {
			return i
		}
	}
	return NoRuleset
}

// UserSelections holds the option paths and ruleset chosen by the user.
// The expander may rewrite both: unknown option paths revert to defaults
// and a ruleset is auto-selected when none is chosen.
type UserSelections struct {
	Options []string
	Ruleset int
}

// NewUserSelections returns selections of the given option paths with no
// ruleset.
func NewUserSelections(options ...string) *UserSelections {
	return &UserSelections{Options: options, Ruleset: NoRuleset}
}
