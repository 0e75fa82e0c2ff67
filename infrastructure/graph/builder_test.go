package graph

import (
	"context"
	"testing"

	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	"coredetect/infrastructure/persistence/memory"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func uid(s string) valueobjects.UserID {
	return valueobjects.MustUserID(s)
}

func TestBuilder_SavesBothGraphTypes(t *testing.T) {
	// Arrange
	ctx := context.Background()
	neighbourhoods := memory.NewInMemoryNeighbourhoodRepository()
	graphs := memory.NewInMemorySocialGraphRepository()
	require.NoError(t, neighbourhoods.Save(ctx, aggregates.NewNeighbourhood(uid("1"),
		[]valueobjects.UserID{uid("2"), uid("3")},
		map[valueobjects.UserID][]valueobjects.UserID{
			uid("1"): {uid("2"), uid("3")},
			uid("2"): {uid("1")},
		})))

	// Act
	err := NewBuilder(neighbourhoods, graphs, zap.NewNop()).Build(ctx, uid("1"))

	// Assert
	require.NoError(t, err)
	union, err := graphs.Get(ctx, uid("1"), valueobjects.GraphTypeUnion)
	require.NoError(t, err)
	assert.Equal(t, 2, union.EdgeCount())

	intersection, err := graphs.Get(ctx, uid("1"), valueobjects.GraphTypeIntersection)
	require.NoError(t, err)
	assert.Equal(t, 1, intersection.EdgeCount())
	assert.Equal(t, []valueobjects.UserID{uid("2")}, intersection.Neighbors(uid("1")))
}

func TestBuilder_MissingNeighbourhood(t *testing.T) {
	b := NewBuilder(memory.NewInMemoryNeighbourhoodRepository(), memory.NewInMemorySocialGraphRepository(), zap.NewNop())

	err := b.Build(context.Background(), uid("1"))

	assert.True(t, pkgerrors.IsNotFound(err))
}
