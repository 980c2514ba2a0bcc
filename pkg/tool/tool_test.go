package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	output string
}

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Description() string { return "ferramenta de teste" }
func (s stubTool) Execute(context.Context, Invocation) Result {
	return Result{Success: true, Output: s.output}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "consultaSaldo", output: "ok"})

	got, err := r.Get("consultaSaldo")
	require.NoError(t, err)
	result := got.Execute(context.Background(), Invocation{})
	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Output)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Get("inexistente")
	require.Error(t, err)
	assert.EqualError(t, err, "Ferramenta 'inexistente' não registrada")
}

func TestRegistryDuplicateLastWins(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "consultaSaldo", output: "primeira"})
	r.Register(stubTool{name: "consultaSaldo", output: "segunda"})

	got, err := r.Get("consultaSaldo")
	require.NoError(t, err)
	assert.Equal(t, "segunda", got.Execute(context.Background(), Invocation{}).Output)
}

func TestRegistryListIsSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "a"})
	r.Register(stubTool{name: "b"})

	snapshot := r.List()
	require.Len(t, snapshot, 2)
	delete(snapshot, "a")

	_, err := r.Get("a")
	assert.NoError(t, err, "mutating the snapshot must not affect the registry")
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "zeta"})
	r.Register(stubTool{name: "alfa"})
	r.Register(stubTool{name: "media"})

	assert.Equal(t, []string{"alfa", "media", "zeta"}, r.Names())
}
