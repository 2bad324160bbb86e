// Package dedup реализует поиск и удаление дубликатов изображений
// по отпечатку декодированных пикселей.
package dedup

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/marccodess/brain-tumor-detection/internal/cache"
	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/imaging"
	"github.com/marccodess/brain-tumor-detection/internal/progress"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
	"github.com/marccodess/brain-tumor-detection/internal/worker"
)

// Duplicate описывает найденный дубликат.
type Duplicate struct {
	// Path - путь к файлу-дубликату (будет удалён).
	Path string

	// CanonicalPath - путь к первому встреченному файлу с тем же отпечатком.
	CanonicalPath string

	// Category - категория файла-дубликата.
	Category string

	// Fingerprint - общий отпечаток пикселей.
	Fingerprint string
}

// Result содержит результат прохода дедупликации.
type Result struct {
	// Scanned - количество просканированных файлов.
	Scanned int

	// Duplicates - найденные дубликаты в порядке обнаружения.
	Duplicates []Duplicate

	// Deleted - количество удалённых файлов.
	Deleted int
}

// Detector ищет дубликаты изображений в папках категорий.
//
// Индекс отпечатков создаётся пустым в начале прохода, общий для всех
// категорий (дубликаты между категориями тоже схлопываются) и не
// сохраняется между запусками. Выживает первый встреченный файл
// в порядке обхода: категории в заданном порядке, файлы внутри
// категории по отсортированным именам.
type Detector struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	cache   *cache.Cache
	limiter *worker.MemoryLimiter

	progress *progress.Bar

	// mu защищает index в режиме слежения.
	mu sync.Mutex

	// index - отпечаток → первый встреченный путь. Живёт один запуск.
	index map[string]string
}

// New создаёт новый Detector.
func New(cfg *config.Config, fpCache *cache.Cache) *Detector {
	return &Detector{
		cfg:     cfg,
		scanner: scanner.New(cfg),
		cache:   fpCache,
		limiter: worker.NewMemoryLimiter(cfg.MaxMemoryMB),
	}
}

// SetProgressBar устанавливает прогресс-бар.
func (d *Detector) SetProgressBar(bar *progress.Bar) {
	d.progress = bar
}

// Scan выполняет проход по всем категориям и находит дубликаты.
// Файлы не удаляются; см. Run.
//
// Ошибка декодирования любого файла фатальна для прохода: молчаливый
// пропуск скрывал бы повреждённые данные в датасете.
func (d *Detector) Scan(ctx context.Context) (*Result, error) {
	d.mu.Lock()
	d.index = make(map[string]string)
	d.mu.Unlock()

	// Собираем файлы всех категорий в детерминированном порядке обхода
	var files []scanner.File
	for _, category := range d.cfg.Categories {
		catFiles, err := d.scanner.ListCategory(category)
		if err != nil {
			return nil, err
		}
		files = append(files, catFiles...)
	}

	// Отпечатки считаются параллельно, но решение "дубликат или канон"
	// принимается последовательно в порядке обхода, поэтому результат
	// не зависит от планировщика.
	fingerprints, err := d.fingerprintAll(ctx, files)
	if err != nil {
		return nil, err
	}

	result := &Result{Scanned: len(files)}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, file := range files {
		fp := fingerprints[i]
		if canonical, ok := d.index[fp]; ok {
			result.Duplicates = append(result.Duplicates, Duplicate{
				Path:          file.Path,
				CanonicalPath: canonical,
				Category:      file.Category,
				Fingerprint:   fp,
			})
			continue
		}
		d.index[fp] = file.Path
	}

	return result, nil
}

// Run выполняет Scan и удаляет найденные дубликаты.
// В режиме dry-run файлы не удаляются, Deleted остаётся нулевым.
// Ошибка удаления фатальна и называет путь к файлу.
func (d *Detector) Run(ctx context.Context) (*Result, error) {
	result, err := d.Scan(ctx)
	if err != nil {
		return nil, err
	}

	if d.cfg.DryRun {
		return result, nil
	}

	for _, dup := range result.Duplicates {
		if err := os.Remove(dup.Path); err != nil {
			return result, fmt.Errorf("не удалось удалить дубликат %s: %w", dup.Path, err)
		}
		result.Deleted++
	}

	return result, nil
}

// fingerprintAll вычисляет отпечатки файлов параллельно.
// Результат возвращается в порядке входного списка.
func (d *Detector) fingerprintAll(ctx context.Context, files []scanner.File) ([]string, error) {
	fingerprints := make([]string, len(files))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	// Ограничиваем число одновременных декодирований
	semaphore := make(chan struct{}, d.cfg.Workers)

	setErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for i := range files {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			fp, err := d.fingerprintFile(ctx, files[i])
			if err != nil {
				setErr(err)
				return
			}
			fingerprints[i] = fp

			if d.progress != nil {
				d.progress.Increment()
			}
		}(i)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	return fingerprints, nil
}

// fingerprintFile возвращает отпечаток файла, используя кэш если он включён.
func (d *Detector) fingerprintFile(ctx context.Context, file scanner.File) (string, error) {
	var key string
	if d.cache != nil && d.cache.IsEnabled() {
		key = d.cache.Key(file.Path, file.Info.Size, file.Info.Mtime)
		if fp, ok := d.cache.Get(key); ok {
			return fp, nil
		}
	}

	// Резервируем память под декодирование
	release, err := d.limiter.Acquire(ctx, imaging.EstimateDecodedSize(file.Info.Size))
	if err != nil {
		return "", err
	}
	defer release()

	fp, err := imaging.FingerprintFile(file.Path)
	if err != nil {
		return "", err
	}

	if key != "" {
		_ = d.cache.Put(key, fp)
	}

	return fp, nil
}

// Observe обрабатывает файл, появившийся в режиме слежения.
// Если отпечаток файла уже есть в индексе текущего запуска, файл
// удаляется как дубликат. Иначе файл становится каноном.
// Возвращает найденный дубликат или nil.
func (d *Detector) Observe(ctx context.Context, file scanner.File) (*Duplicate, error) {
	fp, err := d.fingerprintFile(ctx, file)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.index == nil {
		d.index = make(map[string]string)
	}

	canonical, ok := d.index[fp]
	if !ok || canonical == file.Path {
		d.index[fp] = file.Path
		return nil, nil
	}

	dup := &Duplicate{
		Path:          file.Path,
		CanonicalPath: canonical,
		Category:      file.Category,
		Fingerprint:   fp,
	}

	if !d.cfg.DryRun {
		if err := os.Remove(file.Path); err != nil {
			return nil, fmt.Errorf("не удалось удалить дубликат %s: %w", file.Path, err)
		}
	}

	return dup, nil
}

/*
Возможные расширения:
- Добавить режим quarantine: перемещать дубликаты вместо удаления
- Добавить быстрый префильтр по размеру файла перед декодированием
*/
