// Package internal provides the checking engine behind ludx.
//
// The engine takes a game description, completes it when it still holds
// [a|b] choices, expands its options, rulesets, defines and ranges, and
// validates the result against the grammar. Every finding is an Issue with
// a rule name, a severity and optional source positions.
//
// Key components:
//
// Engine: Coordinates expansion and validation of a description file. It
// owns the define registry, the grammar and the rule configuration, and
// filters out ignored rules, ignored paths and //nolint scopes.
//
// Cache: Keeps the issues of previously checked files keyed by the file
// hash, invalidated when the file, a dependency or the entry age changes.
//
// Watching: StartWatching re-checks .lud files whenever they are written.
//
// SourceCode: A simple structure to represent the content of a description
// file as a collection of lines, used when printing snippets.
//
// Usage:
//
//	engine, err := internal.NewEngine(internal.EngineConfig{})
//	if err != nil {
//	    // handle error
//	}
//
//	issues, err := engine.Run("path/to/Hex.lud")
//	if err != nil {
//	    // handle error
//	}
//
//	for _, issue := range issues {
//	    fmt.Printf("Found issue: %s at %s\n", issue.Message, issue.Start)
//	}
//
// This package is intended for internal use within ludx and should not be
// imported by external packages.
package internal
