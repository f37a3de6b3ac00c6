package define

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/text"
)

const (
	defExt   = ".def"
	aiSuffix = "_ai" + defExt
)

//go:embed lib
var library embed.FS

// Library returns the macro library shipped with the binary.
func Library() fs.FS {
	sub, err := fs.Sub(library, "lib")
	if err != nil {
		panic(err)
	}
	return sub
}

// Registry holds the library macros, keyed by tag. It is loaded once on
// first access and is read only afterwards, so one registry may be shared
// by concurrent expansions.
type Registry struct {
	logger  *zap.Logger
	sources []fs.FS

	once    sync.Once
	defines map[string]*Define
	ai      map[string]*Define
	errs    []error
}

// NewRegistry returns a registry reading every .def file under the given
// file systems. Files ending in _ai.def are AI companion macros. Nothing is
// read until the first lookup.
func NewRegistry(logger *zap.Logger, sources ...fs.FS) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:  logger,
		sources: sources,
	}
}

// DefaultRegistry returns a registry over the embedded library plus extra.
func DefaultRegistry(logger *zap.Logger, extra ...fs.FS) *Registry {
	return NewRegistry(logger, append([]fs.FS{Library()}, extra...)...)
}

func (r *Registry) load() {
	r.once.Do(func() {
		r.defines = make(map[string]*Define)
		r.ai = make(map[string]*Define)
		for _, src := range r.sources {
			err := fs.WalkDir(src, ".", func(p string, entry fs.DirEntry, err error) error {
				if err != nil {
					r.fail(p, err)
					return nil
				}
				if entry.IsDir() || path.Ext(p) != defExt {
					return nil
				}
				r.loadFile(src, p)
				return nil
			})
			if err != nil {
				r.fail(".", err)
			}
		}
		r.logger.Debug("macro library loaded",
			zap.Int("defines", len(r.defines)),
			zap.Int("ai", len(r.ai)),
			zap.Int("errors", len(r.errs)))
	})
}

func (r *Registry) loadFile(src fs.FS, p string) {
	content, err := fs.ReadFile(src, p)
	if err != nil {
		r.fail(p, err)
		return
	}
	body := text.StripComments(string(content))
	clause, _, _, ok := text.Clause(body, "define", 0)
	if !ok {
		r.fail(p, fmt.Errorf("%w: no define clause", ErrMalformedDefine))
		return
	}
	d, err := Interpret(clause, true)
	if err != nil {
		r.fail(p, err)
		return
	}

	target := r.defines
	if strings.HasSuffix(p, aiSuffix) {
		target = r.ai
	}
	if _, exists := target[d.Tag()]; exists {
		r.fail(p, fmt.Errorf("%w: %s", ErrDuplicateDefine, d.Tag()))
		return
	}
	target[d.Tag()] = d
}

func (r *Registry) fail(p string, err error) {
	r.logger.Warn("failed to load macro", zap.String("file", p), zap.Error(err))
	r.errs = append(r.errs, fmt.Errorf("%s: %w", p, err))
}

// Get returns the library macro with the given quoted tag.
func (r *Registry) Get(tag string) (*Define, bool) {
	r.load()
	d, ok := r.defines[tag]
	return d, ok
}

// AI returns the companion AI macro of the named game, "<game>_ai".
func (r *Registry) AI(game string) (*Define, bool) {
	r.load()
	d, ok := r.ai[`"`+game+`_ai"`]
	return d, ok
}

// Sorted returns the library macros ordered by tag.
func (r *Registry) Sorted() []*Define {
	r.load()
	out := make([]*Define, 0, len(r.defines))
	for _, d := range r.defines {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag() < out[j].Tag() })
	return out
}

// Len returns the number of library macros, AI companions excluded.
func (r *Registry) Len() int {
	r.load()
	return len(r.defines)
}

// Errors returns the failures met while loading. The registry still serves
// every macro that did load.
func (r *Registry) Errors() []error {
	r.load()
	return r.errs
}
