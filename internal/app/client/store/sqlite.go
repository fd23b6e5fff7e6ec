package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fieldsync/internal/domain/entity"
)

// SQLiteStore - локальное хранилище на SQLite
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore открывает (или создает) базу по пути path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}

	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initTables() error {
	for _, t := range entity.Tables() {
		_, err := s.db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT '',
				updated_at INTEGER NOT NULL
			);
		`, quote(t)))
		if err != nil {
			return fmt.Errorf("таблица %s: %w", t, err)
		}
	}

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS unsynced_items (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			store TEXT NOT NULL,
			id TEXT NOT NULL,
			status TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL,
			UNIQUE (store, id)
		);

		CREATE TABLE IF NOT EXISTS tiles (
			id TEXT PRIMARY KEY,
			blob BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tiles_created ON tiles(created_at);
	`)

	return err
}

func (s *SQLiteStore) Create(ctx context.Context, table entity.Table, rec entity.Record) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if err := rec.RequireID(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.write(ctx, tx, table, rec)
	})
}

func (s *SQLiteStore) Get(ctx context.Context, table entity.Table, id string) (entity.Record, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.get(ctx, s.db, table, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, table entity.Table) ([]entity.Record, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT payload FROM %s ORDER BY id", quote(table)))
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var records []entity.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, table entity.Table, id string, partial entity.Record) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if id == "" {
		return entity.ErrMissingID
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.get(ctx, tx, table, id)
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			return err
		}
		if existing == nil {
			existing = entity.Record{}
		}

		merged := existing.Merge(partial)
		merged["id"] = id

		return s.write(ctx, tx, table, merged)
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, table entity.Table, id string) error {
	if err := table.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quote(table)), id); err != nil {
			return fmt.Errorf("ошибка удаления записи: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM unsynced_items WHERE store = ? AND id = ?", string(table), id); err != nil {
			return fmt.Errorf("ошибка удаления из очереди: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListUnsynced(ctx context.Context, table entity.Table) ([]entity.UnsyncedItem, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT u.id, u.status, u.revision, e.payload
		FROM unsynced_items u
		JOIN %s e ON e.id = u.id
		WHERE u.store = ?
		ORDER BY u.seq
	`, quote(table)), string(table))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса очереди: %w", err)
	}
	defer rows.Close()

	var items []entity.UnsyncedItem
	for rows.Next() {
		var (
			item    entity.UnsyncedItem
			status  string
			payload string
		)
		if err := rows.Scan(&item.ID, &status, &item.Revision, &payload); err != nil {
			return nil, fmt.Errorf("ошибка сканирования очереди: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		item.Store = table
		item.Status = entity.SyncStatus(status)
		item.Payload = rec
		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *SQLiteStore) EnumerateUnsynced(ctx context.Context) ([]entity.UnsyncedItem, error) {
	return enumerateAll(ctx, s)
}

func (s *SQLiteStore) ResolveUnsynced(ctx context.Context, item entity.UnsyncedItem, status entity.SyncStatus) (bool, error) {
	if err := item.Store.Validate(); err != nil {
		return false, err
	}
	if err := status.Validate(); err != nil {
		return false, err
	}

	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var revision int64
		err := tx.QueryRowContext(ctx,
			"SELECT revision FROM unsynced_items WHERE store = ? AND id = ?",
			string(item.Store), item.ID).Scan(&revision)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка чтения очереди: %w", err)
		}
		if revision != item.Revision {
			return nil
		}

		rec, err := s.get(ctx, tx, item.Store, item.ID)
		if err != nil {
			return err
		}
		if err := s.putRow(ctx, tx, item.Store, rec.WithStatus(status)); err != nil {
			return err
		}

		if status == entity.StatusSynced {
			_, err = tx.ExecContext(ctx, "DELETE FROM unsynced_items WHERE store = ? AND id = ?",
				string(item.Store), item.ID)
		} else {
			_, err = tx.ExecContext(ctx, "UPDATE unsynced_items SET status = ?, updated_at = ? WHERE store = ? AND id = ?",
				string(status), s.now().UnixNano(), string(item.Store), item.ID)
		}
		if err != nil {
			return fmt.Errorf("ошибка обновления очереди: %w", err)
		}

		applied = true
		return nil
	})

	return applied, err
}

func (s *SQLiteStore) CountUnsynced(ctx context.Context) (map[entity.Table]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT store, COUNT(*) FROM unsynced_items GROUP BY store")
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета очереди: %w", err)
	}
	defer rows.Close()

	counts := make(map[entity.Table]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования очереди: %w", err)
		}
		counts[entity.Table(name)] = count
	}

	return counts, rows.Err()
}

func (s *SQLiteStore) HasTile(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM tiles WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки тайла: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) PutTile(ctx context.Context, tile entity.TileRecord) error {
	createdAt := tile.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO tiles (id, blob, created_at) VALUES (?, ?, ?)",
		tile.ID, tile.Blob, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка сохранения тайла: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountTiles(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tiles").Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчета тайлов: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) EvictTiles(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tiles WHERE id IN (
			SELECT id FROM tiles ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки тайлов: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryer, table entity.Table, id string) (entity.Record, error) {
	var payload string
	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", quote(table)), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", entity.ErrNotFound, table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}

	return decode(payload)
}

// write сохраняет запись и синхронизирует индекс outbox с ее статусом
func (s *SQLiteStore) write(ctx context.Context, tx *sql.Tx, table entity.Table, rec entity.Record) error {
	if err := s.putRow(ctx, tx, table, rec); err != nil {
		return err
	}

	var err error
	if rec.Status().NeedsPush() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO unsynced_items (store, id, status, revision, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (store, id) DO UPDATE SET
				status = excluded.status,
				revision = unsynced_items.revision + 1,
				updated_at = excluded.updated_at
		`, string(table), rec.ID(), string(rec.Status()), s.now().UnixNano())
	} else {
		_, err = tx.ExecContext(ctx, "DELETE FROM unsynced_items WHERE store = ? AND id = ?",
			string(table), rec.ID())
	}
	if err != nil {
		return fmt.Errorf("ошибка обновления очереди: %w", err)
	}

	return nil
}

func (s *SQLiteStore) putRow(ctx context.Context, tx *sql.Tx, table entity.Table, rec entity.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, payload, sync_status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			payload = excluded.payload,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at
	`, quote(table)), rec.ID(), string(payload), string(rec.Status()), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}

	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func decode(payload string) (entity.Record, error) {
	var rec entity.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("ошибка парсинга записи: %w", err)
	}
	return rec, nil
}

// quote возвращает имя таблицы в кавычках; имя уже проверено по реестру
func quote(t entity.Table) string {
	return `"` + string(t) + `"`
}
