package mixengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockZero(t *testing.T) {
	b := newBlock(8)
	for i := range b.L {
		b.L[i], b.R[i] = 1, 1
	}
	b.zero()
	for i := range b.L {
		assert.Equal(t, float32(0), b.L[i])
		assert.Equal(t, float32(0), b.R[i])
	}
}

func TestBlockAddScaled(t *testing.T) {
	dst := newBlock(4)
	src := newBlock(4)
	for i := range src.L {
		src.L[i] = float32(i + 1)
		src.R[i] = float32(i + 1)
	}
	dst.addScaled(src, 2)
	for i := range dst.L {
		assert.Equal(t, float32(i+1)*2, dst.L[i])
	}
}

func TestBlockCopyScaled(t *testing.T) {
	dst := newBlock(4)
	src := newBlock(4)
	for i := range src.L {
		src.L[i] = 1
		dst.L[i] = 99
	}
	dst.copyScaled(src, 0.5)
	for i := range dst.L {
		assert.Equal(t, float32(0.5), dst.L[i])
	}
}
