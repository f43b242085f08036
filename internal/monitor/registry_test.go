package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	_, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())

	reg.Add("1:10", cancelA)
	reg.Add("1:20", cancelB)
	assert.Equal(t, []string{"1:10", "1:20"}, reg.Active())

	assert.True(t, reg.Cancel("1:20"))
	assert.Error(t, ctxB.Err(), "cancelling must fire the session's cancel func")
	assert.False(t, reg.Cancel("1:20"), "second cancel is a no-op")

	reg.Remove("1:10")
	assert.Empty(t, reg.Active())
}

func TestRegistryReplaceCancelsPrevious(t *testing.T) {
	reg := NewRegistry()

	ctxOld, cancelOld := context.WithCancel(context.Background())
	_, cancelNew := context.WithCancel(context.Background())

	reg.Add("1:10", cancelOld)
	reg.Add("1:10", cancelNew)

	assert.Error(t, ctxOld.Err())
	assert.Equal(t, []string{"1:10"}, reg.Active())
}
