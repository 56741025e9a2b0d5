package main

import (
	"testing"

	"github.com/delaneyj/observa/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraphPropagates(t *testing.T) {
	for _, sync := range []bool{false, true} {
		cfg := observer.DefaultConfig()
		cfg.Async = !sync
		sys := observer.NewSystem(observer.WithConfig(cfg))
		src := observer.NewObject().With("v", 1)
		sys.Observe(src)

		ends := buildGraph(sys, src, 3, 4)
		require.Len(t, ends, 3)
		for _, end := range ends {
			assert.Equal(t, 5, end.Value())
		}

		src.Set("v", 10)
		require.NoError(t, sys.Tick())
		for _, end := range ends {
			assert.Equal(t, 14, end.Value())
		}
		assert.Zero(t, sys.Queued())
	}
}
