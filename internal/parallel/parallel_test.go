package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}
	out := make([]int, 100)
	For(100, func(i int) { out[i] = i * 2 }, cfg)
	for i, v := range out {
		if v != i*2 {
			t.Errorf("out[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestFor_Parallel(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	n := 10000
	var sum atomic.Int64
	For(n, func(i int) { sum.Add(int64(i)) }, cfg)
	want := int64(n) * int64(n-1) / 2
	if sum.Load() != want {
		t.Errorf("sum = %d, want %d", sum.Load(), want)
	}
}

func TestFor_SmallFallsBackToSequential(t *testing.T) {
	cfg := DefaultConfig()
	out := make([]float64, 8)
	For(8, func(i int) { out[i] = float64(i) }, cfg)
	for i, v := range out {
		if v != float64(i) {
			t.Errorf("out[%d] = %v, want %v", i, v, float64(i))
		}
	}
}

func TestFor_Zero(t *testing.T) {
	called := false
	For(0, func(i int) { called = true }, DefaultConfig())
	if called {
		t.Error("f should not be called for n = 0")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
	if cfg.MinChunkSize < 1 {
		t.Errorf("MinChunkSize = %d, want >= 1", cfg.MinChunkSize)
	}
}
