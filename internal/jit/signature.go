package jit

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/weft-ml/weft/internal/graph"
)

// signature hashes the abstract shape of a call. Dynamic arguments
// contribute shape and dtype only; static arguments additionally
// contribute their data, so each distinct static value keys its own
// compilation.
func (c *Compiled) signature(inputs []*graph.Literal) uint64 {
	h := xxhash.New()
	var buf [8]byte

	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	writeUint(uint64(len(inputs)))
	for i, in := range inputs {
		if c.static[i] {
			writeUint(1)
		} else {
			writeUint(0)
		}
		writeUint(uint64(in.DType))
		writeUint(uint64(len(in.Shape)))
		for _, d := range in.Shape {
			writeUint(uint64(d))
		}
		if c.static[i] {
			for _, v := range in.Data {
				writeUint(math.Float64bits(v))
			}
		}
	}
	return h.Sum64()
}
