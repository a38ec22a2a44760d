package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	scale int
}

func TestAllocAndRunExecutesQueuedJobs(t *testing.T) {
	p := NewProcesses[*fakeDevice]()
	device := &fakeDevice{scale: 10}

	h1 := Alloc(p, func(ctx *fakeDevice) (int, error) { return 1 * ctx.scale, nil })
	h2 := Alloc(p, func(ctx *fakeDevice) (int, error) { return 2 * ctx.scale, nil })

	items := p.Run()
	require.Len(t, items, 2)
	for _, item := range items {
		item.Execute(device)
	}

	v1, err := h1.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, v1)

	v2, err := h2.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, v2)
}

func TestRunDrainsOnlyQueuedSoFar(t *testing.T) {
	p := NewProcesses[*fakeDevice]()
	Alloc(p, func(ctx *fakeDevice) (int, error) { return 1, nil })

	items := p.Run()
	assert.Len(t, items, 1)
	assert.Empty(t, p.Run())
}

func TestHandleWaitReturnsErrorFromBuild(t *testing.T) {
	p := NewProcesses[*fakeDevice]()
	boom := assertError("boom")
	h := Alloc(p, func(ctx *fakeDevice) (int, error) { return 0, boom })

	items := p.Run()
	require.Len(t, items, 1)
	items[0].Execute(&fakeDevice{})

	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

type buildContextKey struct{}

func TestRegistryAllocAndRunInTyped(t *testing.T) {
	r := NewRegistry[buildContextKey]()
	New[*fakeDevice](r)

	h := AllocIn(r, func(ctx *fakeDevice) (int, error) { return ctx.scale, nil })

	items := RunIn[*fakeDevice](r)
	require.Len(t, items, 1)
	items[0].Execute(&fakeDevice{scale: 7})

	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRegistryPanicsOnContextTypeMismatch(t *testing.T) {
	r := NewRegistry[buildContextKey]()
	New[*fakeDevice](r)

	assert.Panics(t, func() {
		RunIn[int](r)
	})
}

type assertError string

func (e assertError) Error() string { return string(e) }
