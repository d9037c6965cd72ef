package memrepo_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/outbound/memrepo"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

func newTestRepo(t *testing.T) *memrepo.InMemoryGraphRepository {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return memrepo.NewInMemoryGraphRepository(logger)
}

func graphWith(t *testing.T, ids ...string) *domain.Graph {
	t.Helper()
	g := domain.NewGraph()
	for _, id := range ids {
		require.NoError(t, g.Add(id, domain.CanonicalNode{Types: []domain.TypeTag{domain.TypeString}}))
	}
	return g
}

func TestInMemoryGraphRepository_SaveAndList(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	a := usecase.CanonicalGraph{Source: "file:///a.json", Graph: graphWith(t, "file:///a.json#")}
	b := usecase.CanonicalGraph{Source: "file:///b.json", Graph: graphWith(t, "file:///b.json#")}

	tests := []struct {
		name        string
		in          []usecase.CanonicalGraph
		wantSaveErr bool
		wantList    []usecase.CanonicalGraph
	}{
		{
			name:     "Save single graph",
			in:       []usecase.CanonicalGraph{a},
			wantList: []usecase.CanonicalGraph{a},
		},
		{
			name:     "List is ordered by source",
			in:       []usecase.CanonicalGraph{b, a},
			wantList: []usecase.CanonicalGraph{a, b},
		},
		{
			name:        "Error on empty source",
			in:          []usecase.CanonicalGraph{{Graph: domain.NewGraph()}},
			wantSaveErr: true,
			wantList:    []usecase.CanonicalGraph{},
		},
		{
			name:        "Error on nil graph",
			in:          []usecase.CanonicalGraph{{Source: "file:///c.json"}},
			wantSaveErr: true,
			wantList:    []usecase.CanonicalGraph{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)

			for _, g := range tt.in {
				err := repo.Save(ctx, g)
				if tt.wantSaveErr {
					assert.Error(err)
				} else {
					assert.NoError(err)
				}
			}

			listed, err := repo.List(ctx)
			require.NoError(err)
			assert.Equal(tt.wantList, listed)
		})
	}
}

func TestInMemoryGraphRepository_FindBySource(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newTestRepo(t)

	stored := usecase.CanonicalGraph{
		Source:    "file:///a.json",
		Documents: []string{"file:///a.json", "file:///b.json"},
		Graph:     graphWith(t, "file:///a.json#"),
	}
	require.NoError(repo.Save(ctx, stored))

	found, err := repo.FindBySource(ctx, "file:///a.json")
	require.NoError(err)
	assert.Equal(stored, *found)

	found.Documents[0] = "mutated"
	again, err := repo.FindBySource(ctx, "file:///a.json")
	require.NoError(err)
	assert.Equal("file:///a.json", again.Documents[0], "callers get a copy")

	missing, err := repo.FindBySource(ctx, "file:///missing.json")
	assert.ErrorIs(err, usecase.ErrGraphNotFound)
	assert.Nil(missing)
}

func TestInMemoryGraphRepository_SaveOverwrite(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newTestRepo(t)

	v1 := usecase.CanonicalGraph{Source: "file:///a.json", Graph: graphWith(t, "file:///a.json#")}
	v2 := usecase.CanonicalGraph{Source: "file:///a.json", Graph: graphWith(t, "file:///a.json#", "file:///a.json#/x")}

	require.NoError(repo.Save(ctx, v1))
	require.NoError(repo.Save(ctx, v2))

	found, err := repo.FindBySource(ctx, "file:///a.json")
	require.NoError(err)
	assert.Equal(2, found.Graph.Len())

	list, err := repo.List(ctx)
	require.NoError(err)
	assert.Len(list, 1)
}

func TestInMemoryGraphRepository_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := "file:///" + string(rune('a'+i)) + ".json"
			assert.NoError(t, repo.Save(ctx, usecase.CanonicalGraph{Source: src, Graph: domain.NewGraph()}))
			_, err := repo.List(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 8)
}
