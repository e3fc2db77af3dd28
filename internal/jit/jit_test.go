package jit_test

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/jit"
	"github.com/weft-ml/weft/internal/trace"
)

func squarePlusOne(args []trace.Value) []trace.Value {
	x := args[0]
	return []trace.Value{x.Mul(x).AddScalar(1)}
}

func TestRunComputesAndCaches(t *testing.T) {
	c := jit.Jit(squarePlusOne)

	for i := 0; i < 5; i++ {
		outs, err := c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
		require.NoError(t, err)
		assert.InDelta(t, 5.0, outs[0].Item(), 1e-12)
	}

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(4), stats.Hits)
	assert.Equal(t, 1, stats.Entries)
}

func TestDifferentShapesCompileSeparately(t *testing.T) {
	c := jit.Jit(squarePlusOne)

	_, err := c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)

	v, _ := graph.NewLiteral([]float64{1, 2, 3}, graph.Shape{3}, graph.Float64)
	outs, err := c.Run([]*graph.Literal{v})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5, 10}, outs[0].Data)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 2, stats.Entries)
}

func TestSameShapeDifferentValuesShareEntry(t *testing.T) {
	c := jit.Jit(squarePlusOne)

	o1, err := c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	o2, err := c.Run([]*graph.Literal{graph.Scalar(10, graph.Float64)})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, o1[0].Item(), 1e-12)
	assert.InDelta(t, 101.0, o2[0].Item(), 1e-12)
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestDTypeIsPartOfSignature(t *testing.T) {
	c := jit.Jit(squarePlusOne)

	_, err := c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	_, err = c.Run([]*graph.Literal{graph.Scalar(2, graph.Float32)})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Stats().Entries)
}

func TestStaticArgnums(t *testing.T) {
	// f(x, k) = x^k with k static: each k compiles its own graph.
	f := func(args []trace.Value) []trace.Value {
		x, k := args[0], args[1]
		lit, err := k.Concrete()
		if err != nil {
			panic(err)
		}
		return []trace.Value{x.Pow(lit.Item())}
	}
	c := jit.Jit(f, jit.WithStaticArgnums(1))

	out, err := c.Run([]*graph.Literal{graph.Scalar(3, graph.Float64), graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, out[0].Item(), 1e-12)

	out, err = c.Run([]*graph.Literal{graph.Scalar(3, graph.Float64), graph.Scalar(3, graph.Float64)})
	require.NoError(t, err)
	assert.InDelta(t, 27.0, out[0].Item(), 1e-12)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Misses, "each static value is its own specialization")

	// Same static value again: cache hit.
	_, err = c.Run([]*graph.Literal{graph.Scalar(5, graph.Float64), graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Stats().Misses)
}

func TestConcurrentFirstCallsBuildOnce(t *testing.T) {
	c := jit.Jit(squarePlusOne)

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses, "exactly one build per signature")
	assert.Equal(t, uint64(callers-1), stats.Hits)
	assert.Equal(t, 1, stats.Entries)
}

func TestClearDropsEntriesKeepsCounters(t *testing.T) {
	c := jit.Jit(squarePlusOne)

	_, err := c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	require.Equal(t, 1, c.Stats().Entries)

	c.Clear()
	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, uint64(1), stats.Misses)

	// Next call recompiles.
	_, err = c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Stats().Misses)
}

func TestTraceErrorSurfacesFromRun(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		// Shape mismatch inside the traced function.
		return []trace.Value{args[0].Add(args[1])}
	}
	c := jit.Jit(f)

	a, _ := graph.NewLiteral([]float64{1, 2}, graph.Shape{2}, graph.Float64)
	b, _ := graph.NewLiteral([]float64{1, 2, 3}, graph.Shape{3}, graph.Float64)
	_, err := c.Run([]*graph.Literal{a, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrMalformedGraph)

	// Failed builds are not cached.
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCollectorExportsCounters(t *testing.T) {
	c := jit.Jit(squarePlusOne)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c.Collector("square_plus_one")))

	for i := 0; i < 3; i++ {
		_, err := c.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[fam.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				byName[fam.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, byName["weft_jit_cache_hits_total"])
	assert.Equal(t, 1.0, byName["weft_jit_cache_misses_total"])
	assert.Equal(t, 1.0, byName["weft_jit_cache_entries"])
}
