package observer_test

import (
	"testing"

	"github.com/delaneyj/observa/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAddsReactiveProperty(t *testing.T) {
	h := newHarness(t)
	child := observer.NewObject().With("a", 1)
	root := observer.NewObject().With("child", child)
	h.sys.Observe(root)

	_, calls := h.watchKey(t, root, "child", nil)
	assert.Equal(t, 2, h.sys.Set(child, "b", 2))
	require.NoError(t, h.sys.Tick())
	assert.Equal(t, 1, *calls, "readers of the container see the new key")

	_, bCalls := h.watchKey(t, child, "b", nil)
	child.Set("b", 3)
	require.NoError(t, h.sys.Tick())
	assert.Equal(t, 1, *bCalls)

	h.sys.Set(child, "b", 4)
	require.NoError(t, h.sys.Tick())
	assert.Equal(t, 2, *bCalls)
	assert.Equal(t, 1, *calls, "existing keys are plain assignments")
}

func TestSetOnPlainObject(t *testing.T) {
	h := newHarness(t)
	obj := observer.NewObject()
	h.sys.Set(obj, "a", 1)
	assert.Equal(t, 1, obj.Get("a"))
	desc, _ := obj.OwnPropertyDescriptor("a")
	assert.Nil(t, desc.Get)
	assert.Empty(t, h.warnings)
}

func TestSetOnRootDataWarns(t *testing.T) {
	h := newHarness(t)
	root := observer.NewObject().With("a", 1)
	h.sys.Observe(root).AddRoot()

	assert.Equal(t, 2, h.sys.Set(root, "b", 2))
	assert.False(t, root.Has("b"))
	require.Len(t, h.warnings, 1)
	assert.Contains(t, h.warnings[0].Message, "root data object")

	h.sys.Delete(root, "a")
	assert.True(t, root.Has("a"))
	assert.Len(t, h.warnings, 2)
}

func TestSetOnReadonlyWarns(t *testing.T) {
	h := newHarness(t)
	obj := observer.NewObject().With("a", 1).MarkReadonly()
	list := observer.NewArray(1).MarkReadonly()

	assert.Nil(t, h.sys.Set(obj, "b", 2))
	assert.Nil(t, h.sys.Set(list, 0, 2))
	h.sys.Delete(obj, "a")
	assert.False(t, obj.Has("b"))
	assert.True(t, obj.Has("a"))
	assert.Equal(t, 1, list.At(0))
	assert.Len(t, h.warnings, 3)
	assert.True(t, observer.IsReadonly(obj))
}

func TestSetOnPrimitiveWarns(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.sys.Set(42, "a", 1))
	assert.Nil(t, h.sys.Set(nil, "a", 1))
	h.sys.Delete("str", "a")
	assert.Len(t, h.warnings, 3)
}

func TestSetArrayIndex(t *testing.T) {
	h := newHarness(t)
	list := observer.NewArray("a", "b")
	obj := observer.NewObject().With("list", list)
	h.sys.Observe(obj)
	_, calls := h.watchKey(t, obj, "list", nil)

	h.sys.Set(list, 1, "B")
	require.NoError(t, h.sys.Tick())
	assert.Equal(t, []any{"a", "B"}, list.Items())
	assert.Equal(t, 1, *calls)

	item := observer.NewObject()
	h.sys.Set(list, "4", item)
	require.NoError(t, h.sys.Tick())
	assert.Equal(t, 5, list.Len())
	assert.Same(t, item, list.At(4))
	assert.NotNil(t, item.Observer())
	assert.Equal(t, 2, *calls)

	assert.Nil(t, h.sys.Set(list, "x", 1))
	assert.Len(t, h.warnings, 1)
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	child := observer.NewObject().With("a", 1).With("b", 2)
	root := observer.NewObject().With("child", child)
	h.sys.Observe(root)
	_, calls := h.watchKey(t, root, "child", nil)

	h.sys.Delete(child, "missing")
	assert.False(t, h.sys.Pending())

	h.sys.Delete(child, "a")
	require.NoError(t, h.sys.Tick())
	assert.Equal(t, 1, *calls)
	assert.Equal(t, []string{"b"}, child.Keys())

	list := observer.NewArray(1, 2, 3)
	h.sys.Delete(list, 1)
	assert.Equal(t, []any{1, 3}, list.Items())
}

func TestDeleteNonConfigurableIsNoop(t *testing.T) {
	h := newHarness(t)
	obj := observer.NewObject().With("a", 1)
	h.sys.Observe(obj)
	obj.Freeze()
	h.sys.Delete(obj, "a")
	assert.True(t, obj.Has("a"))
}
