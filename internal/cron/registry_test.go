package cron

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_IgnoresNilAndKeepsOrder(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}

	registry := NewRegistry(first, nil)
	registry.Register(nil)
	registry.Register(second)

	jobs := registry.Jobs()
	assert.Len(t, jobs, 2)
	assert.Equal(t, "first", jobs[0].Name())
	assert.Equal(t, "second", jobs[1].Name())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "Jobs must return a copy")
}
