// Package watcher предоставляет функциональность слежения за папками категорий.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
	"github.com/marccodess/brain-tumor-detection/internal/storage"
)

// Watcher следит за папками категорий датасета и отправляет новые файлы в канал.
type Watcher struct {
	// cfg - конфигурация.
	cfg *config.Config

	// watcher - fsnotify watcher.
	watcher *fsnotify.Watcher

	// debounceTime - время ожидания перед обработкой файла.
	// Нужно для того, чтобы файл успел полностью записаться.
	debounceTime time.Duration

	// pending - файлы, ожидающие обработки (для debounce).
	pending map[string]time.Time
	mu      sync.Mutex
}

// New создаёт новый Watcher.
func New(cfg *config.Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать watcher: %w", err)
	}

	return &Watcher{
		cfg:          cfg,
		watcher:      w,
		debounceTime: 500 * time.Millisecond,
		pending:      make(map[string]time.Time),
	}, nil
}

// SetDebounceTime устанавливает время debounce.
func (w *Watcher) SetDebounceTime(d time.Duration) {
	w.debounceTime = d
}

// Watch запускает слежение за папками категорий и возвращает канал с файлами.
// Слежение нерекурсивное: наблюдаются только сами папки категорий, как и при
// обычном сканировании.
func (w *Watcher) Watch(ctx context.Context) (<-chan scanner.File, error) {
	for _, category := range w.cfg.Categories {
		dir := w.cfg.CategoryDir(category)
		if err := w.watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("не удалось добавить папку категории %s: %w", dir, err)
		}
	}

	files := make(chan scanner.File, 100)

	// done закрывается при выходе цикла событий и останавливает debounce-цикл,
	// чтобы тот не отправлял в уже закрываемый канал
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	// Горутина для обработки событий
	go func() {
		defer wg.Done()
		w.processEvents(ctx, files, done)
	}()

	// Горутина для debounce
	go func() {
		defer wg.Done()
		w.processPending(ctx, files, done)
	}()

	// Канал закрывает единственный владелец после выхода обеих горутин
	go func() {
		wg.Wait()
		close(files)
	}()

	return files, nil
}

// processEvents обрабатывает события от fsnotify.
func (w *Watcher) processEvents(ctx context.Context, files chan<- scanner.File, done chan<- struct{}) {
	defer close(done)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Обрабатываем только создание и запись файлов
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") || strings.Contains(name, ".mriprep-tmp") {
				continue
			}

			// Проверяем, что это файл (не директория)
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			if !w.cfg.HasInputExtension(filepath.Ext(name)) {
				continue
			}

			// Добавляем в pending для debounce
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Ошибка watcher: %v\n", err)
		}
	}
}

// processPending обрабатывает файлы из pending после debounce.
func (w *Watcher) processPending(ctx context.Context, files chan<- scanner.File, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			w.checkPending(ctx, files, done)
		}
	}
}

// checkPending проверяет pending файлы и отправляет готовые.
func (w *Watcher) checkPending(ctx context.Context, files chan<- scanner.File, done <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for path, addedAt := range w.pending {
		if now.Sub(addedAt) < w.debounceTime {
			continue
		}

		// Файл готов к обработке
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		relPath, err := filepath.Rel(w.cfg.DatasetDir, path)
		if err != nil {
			relPath = filepath.Base(path)
		}

		file := scanner.File{
			Path: path,
			// Категория - имя родительской папки
			Category: filepath.Base(filepath.Dir(path)),
			RelPath:  relPath,
			Info: storage.FileInfo{
				Path:  path,
				Size:  info.Size(),
				Mtime: info.ModTime().Unix(),
			},
		}

		select {
		case files <- file:
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

// Close закрывает watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

/*
Возможные расширения:
- Добавить обработку появления новых папок категорий
- Добавить обработку удаления файлов
- Добавить rate limiting для большого количества файлов
*/
