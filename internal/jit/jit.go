// Package jit caches traced, optimized graphs keyed by the abstract
// signature of the call: argument shapes and dtypes, plus the values of
// any arguments declared static. A call with a seen signature reuses
// the cached graph; a new signature traces and optimizes exactly once,
// even under concurrent first calls.
package jit

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/weft-ml/weft/internal/exec"
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/optimize"
	"github.com/weft-ml/weft/internal/trace"
)

// Compiled is a function with a signature-keyed compilation cache.
// All methods are safe for concurrent use; cached graphs are immutable
// once stored.
type Compiled struct {
	f        trace.Func
	static   map[int]bool
	pipeline *optimize.Pipeline
	log      hclog.Logger

	entries sync.Map // uint64 signature -> *entry
	flight  singleflight.Group
	hits    atomic.Uint64
	misses  atomic.Uint64
}

type entry struct {
	g *graph.Graph
}

// Option configures a Compiled wrapper.
type Option func(*Compiled)

// WithStaticArgnums declares arguments whose concrete values become
// compile-time constants. Each distinct static value compiles its own
// specialization; changing a static value is a cache miss, not an error.
func WithStaticArgnums(nums ...int) Option {
	return func(c *Compiled) {
		for _, n := range nums {
			c.static[n] = true
		}
	}
}

// WithLogger sets the logger used for cache and optimization events.
func WithLogger(log hclog.Logger) Option {
	return func(c *Compiled) {
		c.log = log
	}
}

// Jit wraps f with a compilation cache. The cache belongs to the
// returned wrapper: jitting the same function twice gives two
// independent caches.
func Jit(f trace.Func, opts ...Option) *Compiled {
	c := &Compiled{
		f:      f,
		static: make(map[int]bool),
		log:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pipeline = optimize.New(c.log.Named("optimize"))
	return c
}

// Run evaluates the function on concrete inputs, compiling on first
// sight of the signature.
func (c *Compiled) Run(inputs []*graph.Literal) ([]*graph.Literal, error) {
	for i, in := range inputs {
		if in == nil {
			return nil, pkgerrors.Wrapf(exec.ErrInvalidInput, "input %d is nil", i)
		}
	}
	key := c.signature(inputs)

	if e, ok := c.entries.Load(key); ok {
		c.hits.Add(1)
		return exec.Execute(e.(*entry).g, c.dynamic(inputs))
	}

	// Lost the fast path: at most one caller per signature builds, the
	// rest wait on the flight and count as hits.
	built := false
	v, err, _ := c.flight.Do(strconv.FormatUint(key, 16), func() (interface{}, error) {
		if e, ok := c.entries.Load(key); ok {
			return e, nil
		}
		built = true
		c.misses.Add(1)
		g, err := c.build(inputs)
		if err != nil {
			return nil, err
		}
		e := &entry{g: g}
		c.entries.Store(key, e)
		c.log.Debug("compiled new signature", "key", strconv.FormatUint(key, 16), "nodes", g.NumNodes())
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	if !built {
		c.hits.Add(1)
	}
	return exec.Execute(v.(*entry).g, c.dynamic(inputs))
}

// Func exposes the wrapped function for composition with the other
// transformations. Under an enclosing trace there are no concrete
// values to key a cache on, so the function inlines; caching applies
// where concrete calls happen.
func (c *Compiled) Func() trace.Func {
	return func(args []trace.Value) []trace.Value {
		return c.f(args)
	}
}

// Clear drops every cached compilation. Counters are preserved.
func (c *Compiled) Clear() {
	c.entries.Range(func(k, _ interface{}) bool {
		c.entries.Delete(k)
		return true
	})
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Stats returns current cache counters and the number of live entries.
func (c *Compiled) Stats() Stats {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}

// build traces the wrapped function at the call's abstract signature,
// with static arguments embedded as constants, and runs the optimizer
// over the result.
func (c *Compiled) build(inputs []*graph.Literal) (g *graph.Graph, err error) {
	defer trace.Catch(&err)

	ctx := trace.NewContext()
	args := make([]trace.Value, len(inputs))
	for i, in := range inputs {
		if c.static[i] {
			args[i] = ctx.Constant(in.Clone())
		} else {
			args[i] = ctx.Param(in.Shape, in.DType)
		}
	}
	traced := ctx.Finish(c.f(args)...)
	return c.pipeline.Run(traced), nil
}

// dynamic strips static arguments, which the compiled graph carries as
// constants rather than parameters.
func (c *Compiled) dynamic(inputs []*graph.Literal) []*graph.Literal {
	if len(c.static) == 0 {
		return inputs
	}
	out := make([]*graph.Literal, 0, len(inputs))
	for i, in := range inputs {
		if !c.static[i] {
			out = append(out, in)
		}
	}
	return out
}
