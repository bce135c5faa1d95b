package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStalker_RemoveAlias(t *testing.T) {
	s := &Stalker{ChatID: -5, Targets: []Target{
		{Address: "0x1", Alias: "a"},
		{Address: "0x2", Alias: "b"},
		{Address: "0x3", Alias: "a"},
	}}

	assert.True(t, s.HasAlias("a"))
	assert.Equal(t, 2, s.RemoveAlias("a"))
	assert.Equal(t, []Target{{Address: "0x2", Alias: "b"}}, s.Targets)
	assert.False(t, s.HasAlias("a"))
	assert.Equal(t, 0, s.RemoveAlias("a"))
	assert.Equal(t, "-5", s.Key())
}
