package httpsrc

import "github.com/alxayo/streamengine/internal/bufpool"

// blockSize is the fixed growth increment for the request buffer (spec
// §4.F: "a dynamic byte buffer grown in fixed-size blocks"). It matches
// bufpool's 4096-byte size class so small requests cost a single pooled
// allocation.
const blockSize = 4096

// growBuffer is a dynamic byte buffer that grows by whole blockSize chunks
// pulled from pool, rather than Go's doubling-growth append. Grounded on
// the teacher's bufpool sized-class allocator (internal/bufpool),
// generalized from "one fixed-size chunk per call" to "an append-only
// buffer that requests additional chunks as needed".
type growBuffer struct {
	pool *bufpool.Pool
	buf  []byte
}

func newGrowBuffer(pool *bufpool.Pool) *growBuffer {
	if pool == nil {
		pool = bufpool.New()
	}
	return &growBuffer{pool: pool}
}

// Write appends p, growing the backing array in blockSize increments.
func (g *growBuffer) Write(p []byte) (int, error) {
	need := len(g.buf) + len(p)
	if need > cap(g.buf) {
		newCap := cap(g.buf)
		if newCap == 0 {
			newCap = blockSize
		}
		for newCap < need {
			newCap += blockSize
		}
		fresh := g.pool.Get(newCap)[:len(g.buf)]
		copy(fresh, g.buf)
		g.buf = fresh
	}
	g.buf = append(g.buf, p...)
	return len(p), nil
}

// Bytes returns the buffer's current contents.
func (g *growBuffer) Bytes() []byte { return g.buf }

// Reset empties the buffer, returning its backing array to the pool.
func (g *growBuffer) Reset() {
	if g.buf != nil {
		g.pool.Put(g.buf[:cap(g.buf)])
	}
	g.buf = nil
}

// Len returns the number of bytes written so far.
func (g *growBuffer) Len() int { return len(g.buf) }
