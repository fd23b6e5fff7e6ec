// Package ui - цветной вывод команд клиента
package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"fieldsync/internal/app/client"
	"fieldsync/internal/domain/entity"
)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
)

// SyncStatus раскрашивает статус синхронизации записи
func SyncStatus(s entity.SyncStatus) string {
	switch s {
	case entity.StatusSynced:
		return ok(string(s))
	case entity.StatusPending:
		return warn(string(s))
	case entity.StatusError:
		return bad(string(s))
	}
	return dim("-")
}

// JSON печатает значение с отступами
func JSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Record печатает одну запись
func Record(table entity.Table, rec entity.Record) {
	fmt.Printf("%s %s [%s]\n", table.DisplayName(), rec.ID(), SyncStatus(rec.Status()))

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k == "id" || k == entity.SyncStatusField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, rec[k])
	}
}

// Records печатает записи таблицы
func Records(table entity.Table, records []entity.Record) {
	if len(records) == 0 {
		fmt.Println("Записи не найдены")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tСтатус\tДанные\t\n")
	fmt.Fprintf(w, "---\t---\t---\t\n")
	for _, rec := range records {
		data, _ := json.Marshal(rec.WithoutSyncFields())
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", rec.ID(), SyncStatus(rec.Status()), truncate(string(data), 60))
	}
	_ = w.Flush()

	fmt.Printf("\n%s: %d записей\n", table.DisplayName(), len(records))
}

// PushResult печатает итог отправки
func PushResult(res *client.PushResult) {
	fmt.Printf("Пакетов: %d, отправлено: %s, с ошибкой: %s",
		res.Batches, ok(res.Synced), failed(res.Failed))
	if res.Skipped > 0 {
		fmt.Printf(", изменено во время отправки: %s", warn(res.Skipped))
	}
	fmt.Printf(" (%v)\n", res.Duration.Round(time.Millisecond))
	syncErrors(res.Errors)
}

// PullResult печатает итог загрузки
func PullResult(res *client.PullResult) {
	fmt.Printf("Получено: %d, сохранено: %s", res.Received, ok(res.Applied))
	if res.Invalid > 0 {
		fmt.Printf(", без id: %s", warn(res.Invalid))
	}
	fmt.Printf(" (%v)\n", res.Duration.Round(time.Millisecond))
	syncErrors(res.Errors)
}

// Status печатает сводку состояния движка
func Status(st *client.Status) {
	online := ok("онлайн")
	if !st.Online {
		online = bad("офлайн")
	}

	fmt.Printf("Фаза: %s, связь: %s\n", st.Phase, online)
	fmt.Printf("Очередь отправки: %s\n", failedOrOK(st.TotalQueue))

	tables := make([]string, 0, len(st.Pending))
	for t := range st.Pending {
		tables = append(tables, string(t))
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Printf("  %s: %d\n", entity.Table(t).DisplayName(), st.Pending[entity.Table(t)])
	}

	fmt.Printf("Тайлов в кэше: %d\n", st.Tiles)
	fmt.Printf("Последняя отправка: %s\n", lastRun(st.LastPush, st.LastPushOK))
	fmt.Printf("Последняя загрузка: %s\n", lastRun(st.LastPull, st.LastPullOK))
}

func syncErrors(errs []client.SyncError) {
	for i, e := range errs {
		if i == 3 {
			fmt.Printf("  ... и еще %d ошибок\n", len(errs)-3)
			return
		}
		id := e.RecordID
		if id == "" {
			id = "*"
		}
		fmt.Printf("  %s %s/%s: %s\n", bad("•"), e.Table, id, e.Error)
	}
}

func lastRun(t time.Time, success bool) string {
	if t.IsZero() {
		return dim("не выполнялась")
	}
	mark := ok("успешно")
	if !success {
		mark = bad("с ошибками")
	}
	return fmt.Sprintf("%s, %s", t.Format("2006-01-02 15:04:05"), mark)
}

func failed(n int) string {
	if n == 0 {
		return ok(n)
	}
	return bad(n)
}

func failedOrOK(n int) string {
	if n == 0 {
		return ok("пусто")
	}
	return warn(n)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
