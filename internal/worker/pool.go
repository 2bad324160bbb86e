// Package worker содержит пул воркеров для параллельной обработки.
package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/progress"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
	"github.com/marccodess/brain-tumor-detection/internal/storage"
)

// CopyTask представляет задание на копирование файла в раскладку.
type CopyTask struct {
	// File - исходный файл датасета.
	File scanner.File

	// Split - выборка (train/test/val).
	Split string

	// DstPath - путь назначения в раскладке.
	DstPath string
}

// Stats содержит статистику копирования.
type Stats struct {
	// Copied - количество скопированных файлов.
	Copied int64

	// Skipped - количество пропущенных файлов (уже скопированы).
	Skipped int64

	// Failed - количество файлов с ошибками.
	Failed int64

	// Total - общее количество заданий.
	Total int64

	// CopiedBytes - общий размер скопированных файлов.
	CopiedBytes int64
}

// FormatBytes форматирует байты в человекочитаемый формат.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Pool управляет пулом воркеров для копирования файлов.
type Pool struct {
	cfg      *config.Config
	storage  *storage.Storage
	runID    int64
	stats    Stats
	verbose  bool
	progress *progress.Bar
}

// New создаёт новый пул воркеров.
func New(cfg *config.Config, st *storage.Storage, runID int64) *Pool {
	return &Pool{
		cfg:     cfg,
		storage: st,
		runID:   runID,
		verbose: cfg.Verbose,
	}
}

// SetProgressBar устанавливает прогресс-бар для отображения прогресса.
func (p *Pool) SetProgressBar(bar *progress.Bar) {
	p.progress = bar
}

// Process запускает копирование заданий из канала.
// Возвращает статистику после обработки всех заданий.
func (p *Pool) Process(ctx context.Context, tasks <-chan CopyTask) Stats {
	var wg sync.WaitGroup

	// Запускаем воркеров
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, tasks)
		}()
	}

	wg.Wait()

	return p.GetStats()
}

// worker обрабатывает задания из канала.
func (p *Pool) worker(ctx context.Context, tasks <-chan CopyTask) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			p.processTask(task)
		}
	}
}

// processTask копирует один файл.
func (p *Pool) processTask(task CopyTask) {
	atomic.AddInt64(&p.stats.Total, 1)

	// Вычисляем sha256 содержимого для идемпотентности
	sha, err := scanner.ComputeSHA256(task.File.Path)
	if err != nil {
		p.logError(task.File.Path, fmt.Errorf("не удалось вычислить sha256: %w", err))
		p.incrementFailed()
		return
	}
	task.File.Info.ContentSHA256 = sha

	// Пытаемся начать операцию
	result, err := p.storage.TryStartCopy(p.runID, task.File.Info, task.File.Category, task.Split, task.DstPath)
	if err != nil {
		p.logError(task.File.Path, fmt.Errorf("ошибка БД: %w", err))
		p.incrementFailed()
		return
	}

	if !result.Started {
		// Файл пропущен
		if p.verbose {
			p.logMessage("⏭️  Пропущен: %s (%s)\n", task.File.RelPath, result.SkipReason)
		}
		if p.progress != nil {
			p.progress.IncrementSkipped()
		}
		atomic.AddInt64(&p.stats.Skipped, 1)
		return
	}

	// Dry run mode: запись в журнале снимается, чтобы последующий
	// реальный запуск не принял файл за уже скопированный
	if p.cfg.DryRun {
		p.logMessage("🔄 [dry-run] %s -> %s\n", task.File.RelPath, task.DstPath)
		_ = p.storage.CancelOp(result.OpID)
		if p.progress != nil {
			p.progress.Increment()
		}
		atomic.AddInt64(&p.stats.Copied, 1)
		return
	}

	// Копируем файл
	if err := copyFile(task.File.Path, task.DstPath); err != nil {
		p.logError(task.File.Path, err)
		_ = p.storage.FinalizeOpFailed(result.OpID, err.Error())
		if p.progress != nil {
			p.progress.IncrementFailed()
		}
		p.incrementFailed()
		return
	}

	// Успешно
	if err := p.storage.FinalizeOpOK(result.OpID); err != nil {
		p.logError(task.File.Path, fmt.Errorf("не удалось обновить БД: %w", err))
		p.incrementFailed()
		return
	}

	atomic.AddInt64(&p.stats.CopiedBytes, task.File.Info.Size)

	if p.verbose {
		p.logMessage("✅ %s -> %s/%s\n", task.File.RelPath, task.Split, filepath.Base(task.DstPath))
	}
	if p.progress != nil {
		p.progress.Increment()
	}
	atomic.AddInt64(&p.stats.Copied, 1)
}

// copyFile копирует файл через временное имя, чтобы частично записанный
// файл не остался в раскладке при сбое.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("не удалось открыть %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("не удалось создать %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("не удалось скопировать %s: %w", src, err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("не удалось закрыть %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("не удалось переименовать %s -> %s: %w", tmp, dst, err)
	}

	return nil
}

// incrementFailed увеличивает счётчик ошибок.
func (p *Pool) incrementFailed() {
	atomic.AddInt64(&p.stats.Failed, 1)
}

// logMessage выводит сообщение, не ломая прогресс-бар.
func (p *Pool) logMessage(format string, args ...interface{}) {
	if p.progress != nil && !p.progress.IsDisabled() {
		p.progress.WriteMessage(format, args...)
	} else {
		fmt.Printf(format, args...)
	}
}

// logError логирует ошибку.
func (p *Pool) logError(path string, err error) {
	if p.progress != nil && !p.progress.IsDisabled() {
		p.progress.WriteMessage("❌ %s: %v\n", path, err)
	} else {
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", path, err)
	}
}

// GetStats возвращает текущую статистику.
func (p *Pool) GetStats() Stats {
	return Stats{
		Copied:      atomic.LoadInt64(&p.stats.Copied),
		Skipped:     atomic.LoadInt64(&p.stats.Skipped),
		Failed:      atomic.LoadInt64(&p.stats.Failed),
		Total:       atomic.LoadInt64(&p.stats.Total),
		CopiedBytes: atomic.LoadInt64(&p.stats.CopiedBytes),
	}
}

/*
Возможные расширения:
- Добавить rate limiting
- Добавить сохранение прав и времени модификации исходного файла
- Добавить retry логику для failed операций
*/
