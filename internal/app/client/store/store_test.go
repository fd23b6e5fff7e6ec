package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/domain/entity"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func pending(id string, fields ...any) entity.Record {
	rec := entity.Record{"id": id, entity.SyncStatusField: string(entity.StatusPending)}
	for i := 0; i+1 < len(fields); i += 2 {
		rec[fields[i].(string)] = fields[i+1]
	}
	return rec
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, entity.TableResearches, pending("r1", "title", "Почвы")))

			got, err := s.Get(ctx, entity.TableResearches, "r1")
			require.NoError(t, err)
			assert.Equal(t, "Почвы", got["title"])
			assert.Equal(t, entity.StatusPending, got.Status())

			// last write wins
			require.NoError(t, s.Create(ctx, entity.TableResearches, pending("r1", "title", "Реки")))
			got, err = s.Get(ctx, entity.TableResearches, "r1")
			require.NoError(t, err)
			assert.Equal(t, "Реки", got["title"])

			all, err := s.GetAll(ctx, entity.TableResearches)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, s.Delete(ctx, entity.TableResearches, "r1"))
			_, err = s.Get(ctx, entity.TableResearches, "r1")
			assert.ErrorIs(t, err, entity.ErrNotFound)
		})
	}
}

func TestStore_Validation(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Create(ctx, entity.Table("unknown"), pending("x"))
			assert.ErrorIs(t, err, entity.ErrUnknownTable)

			err = s.Create(ctx, entity.TableUsers, entity.Record{"name": "no id"})
			assert.ErrorIs(t, err, entity.ErrMissingID)

			err = s.Update(ctx, entity.TableUsers, "", entity.Record{"name": "x"})
			assert.ErrorIs(t, err, entity.ErrMissingID)
		})
	}
}

func TestStore_UpdateMerges(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, entity.TableFields, pending("f1", "label", "Глубина", "unit", "см")))
			require.NoError(t, s.Update(ctx, entity.TableFields, "f1", entity.Record{"label": "Высота"}))

			got, err := s.Get(ctx, entity.TableFields, "f1")
			require.NoError(t, err)
			assert.Equal(t, "Высота", got["label"])
			assert.Equal(t, "см", got["unit"])

			// upsert
			require.NoError(t, s.Update(ctx, entity.TableFields, "f2", entity.Record{"label": "Новое"}))
			got, err = s.Get(ctx, entity.TableFields, "f2")
			require.NoError(t, err)
			assert.Equal(t, "f2", got.ID())
		})
	}
}

func TestStore_OutboxFollowsStatus(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, entity.TableUsers, pending("u1")))
			require.NoError(t, s.Create(ctx, entity.TableUsers, pending("u2")))
			require.NoError(t, s.Create(ctx, entity.TableResearches, pending("r1", "title", "t")))
			require.NoError(t, s.Create(ctx, entity.TableUsers,
				entity.Record{"id": "u3", entity.SyncStatusField: string(entity.StatusSynced)}))

			items, err := s.ListUnsynced(ctx, entity.TableUsers)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "u1", items[0].ID)
			assert.Equal(t, "u2", items[1].ID)

			all, err := s.EnumerateUnsynced(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, entity.TableUsers, all[0].Store)
			assert.Equal(t, entity.TableResearches, all[2].Store)

			counts, err := s.CountUnsynced(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[entity.Table]int{entity.TableUsers: 2, entity.TableResearches: 1}, counts)

			// synced через pull убирает запись из очереди
			require.NoError(t, s.Update(ctx, entity.TableUsers, "u1",
				entity.Record{entity.SyncStatusField: string(entity.StatusSynced)}))
			items, err = s.ListUnsynced(ctx, entity.TableUsers)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "u2", items[0].ID)
		})
	}
}

func TestStore_ResolveUnsynced(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, entity.TableUsers, pending("u1", "name", "Анна")))
			require.NoError(t, s.Create(ctx, entity.TableUsers, pending("u2", "name", "Иван")))

			items, err := s.ListUnsynced(ctx, entity.TableUsers)
			require.NoError(t, err)
			require.Len(t, items, 2)

			ok, err := s.ResolveUnsynced(ctx, items[0], entity.StatusSynced)
			require.NoError(t, err)
			assert.True(t, ok)

			got, err := s.Get(ctx, entity.TableUsers, "u1")
			require.NoError(t, err)
			assert.Equal(t, entity.StatusSynced, got.Status())

			ok, err = s.ResolveUnsynced(ctx, items[1], entity.StatusError)
			require.NoError(t, err)
			assert.True(t, ok)

			left, err := s.ListUnsynced(ctx, entity.TableUsers)
			require.NoError(t, err)
			require.Len(t, left, 1)
			assert.Equal(t, entity.StatusError, left[0].Status)
			assert.Equal(t, entity.StatusError, left[0].Payload.Status())
		})
	}
}

func TestStore_ResolveSkipsNewerWrite(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, entity.TableUsers, pending("u1", "name", "v1")))

			items, err := s.ListUnsynced(ctx, entity.TableUsers)
			require.NoError(t, err)
			require.Len(t, items, 1)

			// запись изменилась, пока шла отправка
			require.NoError(t, s.Update(ctx, entity.TableUsers, "u1", pending("u1", "name", "v2")))

			ok, err := s.ResolveUnsynced(ctx, items[0], entity.StatusSynced)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := s.Get(ctx, entity.TableUsers, "u1")
			require.NoError(t, err)
			assert.Equal(t, entity.StatusPending, got.Status())
			assert.Equal(t, "v2", got["name"])

			left, err := s.ListUnsynced(ctx, entity.TableUsers)
			require.NoError(t, err)
			require.Len(t, left, 1)
			assert.Greater(t, left[0].Revision, items[0].Revision)
		})
	}
}

func TestStore_Tiles(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, s.PutTile(ctx, entity.TileRecord{
					ID:        entity.TileID(14, i, 0),
					Blob:      []byte{byte(i)},
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}))
			}

			// повторная запись не перезаписывает тайл
			require.NoError(t, s.PutTile(ctx, entity.TileRecord{ID: entity.TileID(14, 0, 0), Blob: []byte{9}}))

			n, err := s.CountTiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, n)

			evicted, err := s.EvictTiles(ctx, 3)
			require.NoError(t, err)
			assert.Equal(t, 2, evicted)

			for i, want := range []bool{false, false, true, true, true} {
				ok, err := s.HasTile(ctx, entity.TileID(14, i, 0))
				require.NoError(t, err)
				assert.Equal(t, want, ok, "tile %d", i)
			}

			evicted, err = s.EvictTiles(ctx, 10)
			require.NoError(t, err)
			assert.Zero(t, evicted)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), entity.TableUsers, "u1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, entity.TableUsers, pending("u1")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	items, err := s.ListUnsynced(ctx, entity.TableUsers)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u1", items[0].ID)
}
