// Package grammar is the symbol table that description tokens are matched
// against, and the parse tree built from a token tree.
package grammar

import (
	"embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed grammar.yaml
var embedded embed.FS

// Kind is the kind of token a symbol can match.
type Kind int

const (
	Terminal Kind = iota
	Class
	Array
)

func (k Kind) String() string {
	switch k {
	case Terminal:
		return "terminal"
	case Class:
		return "class"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// Unbounded is the MaxArgs of a symbol taking any number of arguments.
const Unbounded = -1

// Symbol is one grammar entry.
type Symbol struct {
	Name    string
	Kind    Kind
	MinArgs int
	MaxArgs int
}

// Accepts reports whether a clause of n arguments fits the symbol.
func (s Symbol) Accepts(n int) bool {
	return n >= s.MinArgs && (s.MaxArgs == Unbounded || n <= s.MaxArgs)
}

// Grammar resolves token names to the symbols they may stand for.
type Grammar interface {
	Resolve(name string, kind Kind) []Symbol
	Version() string
}

// Primitive terminal symbols.
var (
	StringSymbol  = Symbol{Name: "string", Kind: Terminal}
	IntSymbol     = Symbol{Name: "int", Kind: Terminal}
	FloatSymbol   = Symbol{Name: "float", Kind: Terminal}
	BooleanSymbol = Symbol{Name: "boolean", Kind: Terminal}
	ArraySymbol   = Symbol{Name: "{}", Kind: Array, MaxArgs: Unbounded}
)

// SymbolTable is the default Grammar. It is safe for concurrent use.
type SymbolTable struct {
	version string

	mutex   sync.RWMutex
	symbols map[string]Symbol
}

func New(version string) *SymbolTable {
	return &SymbolTable{
		version: version,
		symbols: make(map[string]Symbol),
	}
}

type file struct {
	Version string `yaml:"version"`
	Classes []struct {
		Name string `yaml:"name"`
		Min  int    `yaml:"min"`
		Max  *int   `yaml:"max"`
	} `yaml:"classes"`
	Constants []string `yaml:"constants"`
}

// LoadYAML reads a symbol table of the form
//
//	version: 1.3.14
//	classes:
//	  - {name: players, min: 1, max: 1}
//	constants: [Each, Mover]
//
// A class without max takes any number of arguments.
func LoadYAML(r io.Reader) (*SymbolTable, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding grammar: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("grammar has no version")
	}

	st := New(f.Version)
	for _, c := range f.Classes {
		if c.Name == "" {
			return nil, fmt.Errorf("grammar class without a name")
		}
		max := Unbounded
		if c.Max != nil {
			max = *c.Max
		}
		st.Add(Symbol{Name: c.Name, Kind: Class, MinArgs: c.Min, MaxArgs: max})
	}
	for _, name := range f.Constants {
		st.Add(Symbol{Name: name, Kind: Terminal})
	}
	return st, nil
}

// LoadFile reads a symbol table from a YAML file.
func LoadFile(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

var (
	defaultOnce  sync.Once
	defaultTable *SymbolTable
	defaultErr   error
)

// Default returns the embedded symbol table, loaded once.
func Default() (*SymbolTable, error) {
	defaultOnce.Do(func() {
		f, err := embedded.Open("grammar.yaml")
		if err != nil {
			defaultErr = err
			return
		}
		defer f.Close()
		defaultTable, defaultErr = LoadYAML(f)
	})
	return defaultTable, defaultErr
}

func (st *SymbolTable) Version() string { return st.version }

func (st *SymbolTable) Add(s Symbol) {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	st.symbols[s.Name] = s
}

func (st *SymbolTable) IsDefined(name string) bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	_, exists := st.symbols[name]
	return exists
}

func (st *SymbolTable) Symbol(name string) (Symbol, bool) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	s, exists := st.symbols[name]
	return s, exists
}

// Names returns every symbol name of the given kind, sorted.
func (st *SymbolTable) Names(kind Kind) []string {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	var out []string
	for name, s := range st.symbols {
		if s.Kind == kind {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the symbols name can stand for as a token of kind. An
// array always resolves; a terminal resolves to a primitive or a declared
// constant; a class resolves to its declaration.
func (st *SymbolTable) Resolve(name string, kind Kind) []Symbol {
	switch kind {
	case Array:
		return []Symbol{ArraySymbol}
	case Terminal:
		if p, ok := primitive(name); ok {
			return []Symbol{p}
		}
	}
	s, ok := st.Symbol(name)
	if !ok || s.Kind != kind {
		return nil
	}
	return []Symbol{s}
}

func primitive(name string) (Symbol, bool) {
	switch {
	case strings.HasPrefix(name, `"`):
		return StringSymbol, true
	case name == "True" || name == "False" || name == "true" || name == "false":
		return BooleanSymbol, true
	}
	if _, err := strconv.Atoi(name); err == nil {
		return IntSymbol, true
	}
	if _, err := strconv.ParseFloat(name, 64); err == nil && strings.ContainsRune(name, '.') {
		return FloatSymbol, true
	}
	return Symbol{}, false
}
