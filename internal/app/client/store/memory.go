package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fieldsync/internal/domain/entity"
)

type outboxEntry struct {
	seq      int64
	status   entity.SyncStatus
	revision int64
}

// MemoryStore - временное in-memory хранилище с той же семантикой, что и SQLiteStore
type MemoryStore struct {
	mu      sync.RWMutex
	closed  bool
	tables  map[entity.Table]map[string]entity.Record
	outbox  map[entity.Table]map[string]*outboxEntry
	seq     int64
	tiles   map[string]entity.TileRecord
	tileSeq map[string]int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:  make(map[entity.Table]map[string]entity.Record),
		outbox:  make(map[entity.Table]map[string]*outboxEntry),
		tiles:   make(map[string]entity.TileRecord),
		tileSeq: make(map[string]int64),
		now:     time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, table entity.Table, rec entity.Record) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if err := rec.RequireID(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.write(table, rec.Clone())
	return nil
}

func (m *MemoryStore) Get(_ context.Context, table entity.Table, id string) (entity.Record, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	rec, ok := m.tables[table][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", entity.ErrNotFound, table, id)
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) GetAll(_ context.Context, table entity.Table) ([]entity.Record, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	ids := make([]string, 0, len(m.tables[table]))
	for id := range m.tables[table] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]entity.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, m.tables[table][id].Clone())
	}
	return records, nil
}

func (m *MemoryStore) Update(_ context.Context, table entity.Table, id string, partial entity.Record) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if id == "" {
		return entity.ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	existing, ok := m.tables[table][id]
	if !ok {
		existing = entity.Record{}
	}
	merged := existing.Merge(partial)
	merged["id"] = id

	m.write(table, merged)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, table entity.Table, id string) error {
	if err := table.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	delete(m.tables[table], id)
	delete(m.outbox[table], id)
	return nil
}

func (m *MemoryStore) ListUnsynced(_ context.Context, table entity.Table) ([]entity.UnsyncedItem, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	items := make([]entity.UnsyncedItem, 0, len(m.outbox[table]))
	seqs := make(map[string]int64, len(m.outbox[table]))
	for id, e := range m.outbox[table] {
		rec, ok := m.tables[table][id]
		if !ok {
			continue
		}
		items = append(items, entity.UnsyncedItem{
			ID:       id,
			Store:    table,
			Status:   e.status,
			Revision: e.revision,
			Payload:  rec.Clone(),
		})
		seqs[id] = e.seq
	}

	sort.Slice(items, func(i, j int) bool {
		return seqs[items[i].ID] < seqs[items[j].ID]
	})

	return items, nil
}

func (m *MemoryStore) EnumerateUnsynced(ctx context.Context) ([]entity.UnsyncedItem, error) {
	return enumerateAll(ctx, m)
}

func (m *MemoryStore) ResolveUnsynced(_ context.Context, item entity.UnsyncedItem, status entity.SyncStatus) (bool, error) {
	if err := item.Store.Validate(); err != nil {
		return false, err
	}
	if err := status.Validate(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	e, ok := m.outbox[item.Store][item.ID]
	if !ok || e.revision != item.Revision {
		return false, nil
	}
	rec, ok := m.tables[item.Store][item.ID]
	if !ok {
		return false, nil
	}

	m.tables[item.Store][item.ID] = rec.WithStatus(status)
	if status == entity.StatusSynced {
		delete(m.outbox[item.Store], item.ID)
	} else {
		e.status = status
	}

	return true, nil
}

func (m *MemoryStore) CountUnsynced(_ context.Context) (map[entity.Table]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	counts := make(map[entity.Table]int)
	for t, entries := range m.outbox {
		if len(entries) > 0 {
			counts[t] = len(entries)
		}
	}
	return counts, nil
}

func (m *MemoryStore) HasTile(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}

	_, ok := m.tiles[id]
	return ok, nil
}

func (m *MemoryStore) PutTile(_ context.Context, tile entity.TileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if _, ok := m.tiles[tile.ID]; ok {
		return nil
	}
	if tile.CreatedAt.IsZero() {
		tile.CreatedAt = m.now()
	}
	m.seq++
	m.tiles[tile.ID] = tile
	m.tileSeq[tile.ID] = m.seq
	return nil
}

func (m *MemoryStore) CountTiles(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.tiles), nil
}

func (m *MemoryStore) EvictTiles(_ context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}
	if len(m.tiles) <= keep {
		return 0, nil
	}

	ids := make([]string, 0, len(m.tiles))
	for id := range m.tiles {
		ids = append(ids, id)
	}
	// новые в начале
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.tiles[ids[i]], m.tiles[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return m.tileSeq[ids[i]] > m.tileSeq[ids[j]]
	})

	evicted := 0
	for _, id := range ids[keep:] {
		delete(m.tiles, id)
		delete(m.tileSeq, id)
		evicted++
	}
	return evicted, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// write должен вызываться под m.mu
func (m *MemoryStore) write(table entity.Table, rec entity.Record) {
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]entity.Record)
	}
	id := rec.ID()
	m.tables[table][id] = rec

	if !rec.Status().NeedsPush() {
		delete(m.outbox[table], id)
		return
	}

	if m.outbox[table] == nil {
		m.outbox[table] = make(map[string]*outboxEntry)
	}
	if e, ok := m.outbox[table][id]; ok {
		e.status = rec.Status()
		e.revision++
		return
	}
	m.seq++
	m.outbox[table][id] = &outboxEntry{seq: m.seq, status: rec.Status(), revision: 1}
}
