package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchKey(t *testing.T) {
	assert.Equal(t, "search:weather in paris", SearchKey("  Weather   in PARIS "))
	assert.Equal(t, SearchKey("Go"), SearchKey("go"))
}
