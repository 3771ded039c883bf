package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

func TestNewStore_ValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewStore(ctx, Config{Table: "bad-name", EmbeddingDim: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewStore(ctx, Config{Table: "chunks; DROP TABLE users", EmbeddingDim: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewStore(ctx, Config{Table: "chunks"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,0,-0.5]", vectorLiteral([]float32{1, 0, -0.5}))
}

func TestTsQuery(t *testing.T) {
	assert.Equal(t, "beasiswa | unggulan", tsQuery([]string{"beasiswa", "unggulan"}))
	assert.Equal(t, "solo", tsQuery([]string{"solo"}))
}

func TestCondition_RewritesPlaceholders(t *testing.T) {
	cond := &condition{}
	cond.add("id = ANY($1)", []string{"a"})
	cond.add("metadata->>'file_id' = ANY($1)", []string{"f1"})

	assert.Equal(t, " WHERE id = ANY($1) AND metadata->>'file_id' = ANY($2)", cond.where())
	assert.Len(t, cond.args, 2)
}

func TestCondition_EmptyWhere(t *testing.T) {
	cond := &condition{}
	assert.Empty(t, cond.where())
}

func TestScopeFilterCondition(t *testing.T) {
	cond, err := scopeFilterCondition(
		[]string{"a", "b"},
		[]domain.MetadataFilter{{Field: "file_id", Values: []string{"f1", "f2"}}},
	)
	require.NoError(t, err)
	assert.Equal(t, " WHERE id = ANY($1) AND metadata->>'file_id' = ANY($2)", cond.where())
}

func TestScopeFilterCondition_RejectsBadField(t *testing.T) {
	_, err := scopeFilterCondition(nil, []domain.MetadataFilter{
		{Field: "file_id'; --", Values: []string{"x"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScopeFilterCondition_SkipsEmptyValueSets(t *testing.T) {
	cond, err := scopeFilterCondition(nil, []domain.MetadataFilter{
		{Field: "file_id"},
	})
	require.NoError(t, err)
	assert.Empty(t, cond.where())
}
