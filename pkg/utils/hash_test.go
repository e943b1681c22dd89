package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashVisitor(t *testing.T) {
	a := HashVisitor("10.0.0.1", "Mozilla/5.0")
	b := HashVisitor("10.0.0.1", "Mozilla/5.0")
	c := HashVisitor("10.0.0.1", "curl/8.0")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHashIP(t *testing.T) {
	h := HashIP("10.0.0.1")

	assert.Len(t, h, 16)
	assert.Equal(t, h, HashIP("10.0.0.1"))
	assert.NotEqual(t, h, HashIP("10.0.0.2"))
}
