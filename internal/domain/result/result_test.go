package result

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestResult_States(t *testing.T) {
	var idle Result[int]
	assert.Equal(t, Idle, idle.State())
	_, ok := idle.Value()
	assert.False(t, ok)
	assert.NoError(t, idle.Err())

	loading := NewLoading[int]()
	assert.Equal(t, Loading, loading.State())
	_, ok = loading.Value()
	assert.False(t, ok)

	boom := errors.New("boom")
	failed := Fail[int](boom)
	assert.Equal(t, Failed, failed.State())
	assert.ErrorIs(t, failed.Err(), boom)
	_, ok = failed.Value()
	assert.False(t, ok)

	done := Succeed(42)
	assert.Equal(t, Succeeded, done.State())
	v, ok := done.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.NoError(t, done.Err())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "unknown", State(99).String())
}
