package alanpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriverSplitsOnEOP(t *testing.T) {
	d := NewDriver()
	programs := d.Split(`{}$ { int x }$`)

	assert.Equal(t, []string{"{}$", " { int x }$"}, programs)
}

func TestDriverSplitTrailingFragmentIgnored(t *testing.T) {
	d := NewDriver()
	programs := d.Split(`{}$   `)

	assert.Equal(t, []string{"{}$"}, programs)
}

func TestDriverCompilesIndependentPrograms(t *testing.T) {
	d := NewDriver()
	results, err := d.Compile(`{ int x x = 1 print(x) }$ { x = 1 }$`)

	assert.NoError(t, err)
	assert.Len(t, results, 2)

	assert.Equal(t, 0, results[0].Index)
	assert.False(t, results[0].Sink.HasErrors())
	assert.NotNil(t, results[0].Image)

	assert.Equal(t, 1, results[1].Index)
	assert.True(t, results[1].Sink.HasErrors(), "second program references an undeclared x")
	assert.Nil(t, results[1].Image)
}

func TestDriverFailurePerProgramDoesNotLeak(t *testing.T) {
	d := NewDriver()
	results, err := d.Compile(`{ x = 1 }$ { int y y = 2 print(y) }$`)

	assert.NoError(t, err)
	assert.True(t, results[0].Sink.HasErrors())
	assert.False(t, results[1].Sink.HasErrors())
	assert.NotNil(t, results[1].Image)
}
