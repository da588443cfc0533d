package id

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestClientOrderID(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Za-z0-9_-]{1,36}$`)

	a := ClientOrderID("hk")
	b := ClientOrderID("hk")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, valid, a)
	assert.Regexp(t, valid, ClientOrderID(""))
	assert.Regexp(t, valid, ClientOrderID("a-very-long-prefix-for-orders"))
}
