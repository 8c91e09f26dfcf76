package matcher

import (
	"fmt"
	"sync"

	"github.com/coregx/coregex/meta"
)

// Engine compiles patterns into searchable programs.
//
// Implementations must be safe for concurrent use; the scheduler evaluates
// many tasks against one Engine at the same time.
type Engine interface {
	Compile(pattern string) (Program, error)
}

// Program is a compiled pattern. FindAt may be called from several
// goroutines at once.
type Program interface {
	// NumGroups returns the number of explicit capturing groups.
	NumGroups() int

	// FindAt returns the leftmost match starting at or after byte offset at.
	// The result holds 2*(NumGroups()+1) indices: the overall match followed
	// by each group, with -1 pairs for groups that did not participate.
	// A nil result means there is no further match.
	FindAt(input string, at int) []int
}

// CoregexEngine binds the coregex meta engine. A meta.Engine carries mutable
// search state, so each compiled pattern keeps a pool of engines and a search
// borrows one for its duration. Programs are cached per pattern, since the
// same pattern is compiled again on every retry.
type CoregexEngine struct {
	config meta.Config
	cache  sync.Map // pattern -> *coregexProgram
}

var _ Engine = (*CoregexEngine)(nil)

// NewCoregexEngine creates an engine with coregex's default configuration.
func NewCoregexEngine() *CoregexEngine {
	return NewCoregexEngineWithConfig(meta.DefaultConfig())
}

// NewCoregexEngineWithConfig creates an engine with a custom configuration.
func NewCoregexEngineWithConfig(config meta.Config) *CoregexEngine {
	return &CoregexEngine{config: config}
}

// Compile compiles pattern, reusing a cached program when available.
func (e *CoregexEngine) Compile(pattern string) (Program, error) {
	if cached, ok := e.cache.Load(pattern); ok {
		return cached.(*coregexProgram), nil
	}

	engine, err := meta.CompileWithConfig(pattern, e.config)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}

	prog := newCoregexProgram(pattern, e.config, engine)
	actual, _ := e.cache.LoadOrStore(pattern, prog)
	return actual.(*coregexProgram), nil
}

type coregexProgram struct {
	pattern   string
	config    meta.Config
	numGroups int
	engines   sync.Pool // *meta.Engine, one per concurrent search
}

func newCoregexProgram(pattern string, config meta.Config, first *meta.Engine) *coregexProgram {
	p := &coregexProgram{
		pattern: pattern,
		config:  config,
		// NumCaptures counts group 0 (the whole match).
		numGroups: first.NumCaptures() - 1,
	}
	p.engines.New = func() any {
		engine, err := meta.CompileWithConfig(p.pattern, p.config)
		if err != nil {
			// The pattern compiled once already.
			panic(fmt.Sprintf("recompile %q: %v", p.pattern, err))
		}
		return engine
	}
	p.engines.Put(first)
	return p
}

func (p *coregexProgram) NumGroups() int {
	return p.numGroups
}

func (p *coregexProgram) FindAt(input string, at int) []int {
	engine := p.engines.Get().(*meta.Engine)
	defer p.engines.Put(engine)

	match := engine.FindSubmatchAt([]byte(input), at)
	if match == nil {
		return nil
	}

	numGroups := match.NumCaptures()
	result := make([]int, numGroups*2)
	for i := 0; i < numGroups; i++ {
		idx := match.GroupIndex(i)
		if len(idx) >= 2 {
			result[i*2] = idx[0]
			result[i*2+1] = idx[1]
		} else {
			result[i*2] = -1
			result[i*2+1] = -1
		}
	}
	return result
}
