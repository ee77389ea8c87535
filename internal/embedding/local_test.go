package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalEngineDefaults(t *testing.T) {
	engine, err := NewLocalEngine("", 0)
	require.NoError(t, err)
	assert.Equal(t, 384, engine.Dimensions())
	assert.Equal(t, "local:semsearch-embed", engine.Name())
}

func TestLocalEngineHealthCheckMissingBinary(t *testing.T) {
	engine, err := NewLocalEngine("semsearch-embed-definitely-not-on-path", 384)
	require.NoError(t, err)

	err = engine.HealthCheck(context.Background())
	assert.Error(t, err)
}

func TestLocalEngineEmbedBatchMissingBinary(t *testing.T) {
	engine, err := NewLocalEngine("semsearch-embed-definitely-not-on-path", 384)
	require.NoError(t, err)

	_, err = engine.EmbedBatch(context.Background(), []string{"hello"})
	assert.Error(t, err)
}

func TestLocalEngineEmbedBatchEmptyInput(t *testing.T) {
	engine, err := NewLocalEngine("semsearch-embed", 384)
	require.NoError(t, err)

	results, err := engine.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
