// Package splitter формирует раскладку train/test/val из папок категорий.
package splitter

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/progress"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
	"github.com/marccodess/brain-tumor-detection/internal/storage"
	"github.com/marccodess/brain-tumor-detection/internal/worker"
)

// Assignment привязывает файл к выборке.
type Assignment struct {
	// File - файл датасета.
	File scanner.File

	// Split - выборка (train/test/val).
	Split string
}

// Plan описывает распределение файлов по выборкам.
type Plan struct {
	// Assignments - привязки в порядке категорий и выборок.
	Assignments []Assignment

	// Counts - количество файлов по категориям и выборкам.
	Counts map[string]map[string]int
}

// BuildPlan распределяет файлы категорий по выборкам.
//
// Для каждой категории файлы перемешиваются детерминированно: зерно
// выводится из seed и имени категории, поэтому добавление новой категории
// не меняет распределение остальных. Точки разреза: n*train и
// n*(train+test), остаток уходит в val.
func BuildPlan(files map[string][]scanner.File, categories []string, trainRatio, testRatio float64, seed int64) *Plan {
	plan := &Plan{
		Counts: make(map[string]map[string]int, len(categories)),
	}

	for _, category := range categories {
		catFiles := append([]scanner.File(nil), files[category]...)

		rng := rand.New(rand.NewSource(categorySeed(seed, category)))
		rng.Shuffle(len(catFiles), func(i, j int) {
			catFiles[i], catFiles[j] = catFiles[j], catFiles[i]
		})

		n := len(catFiles)
		trainEnd := int(float64(n) * trainRatio)
		// Вторая точка разреза считается от суммарной доли, а не как сумма
		// усечённых частей: иначе test теряет файл на каждом округлении
		testEnd := int(float64(n) * (trainRatio + testRatio))
		if testEnd > n {
			testEnd = n
		}

		counts := map[string]int{}
		assign := func(split string, part []scanner.File) {
			for _, f := range part {
				plan.Assignments = append(plan.Assignments, Assignment{File: f, Split: split})
			}
			counts[split] = len(part)
		}

		assign("train", catFiles[:trainEnd])
		assign("test", catFiles[trainEnd:testEnd])
		assign("val", catFiles[testEnd:])

		plan.Counts[category] = counts
	}

	return plan
}

// categorySeed выводит зерно перемешивания категории из общего зерна.
func categorySeed(seed int64, category string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(category))
	return seed ^ int64(h.Sum64())
}

// EnsureLayout создаёт директории раскладки <out>/<split>/<category>.
func EnsureLayout(outputDir string, splits, categories []string) error {
	for _, split := range splits {
		for _, category := range categories {
			dir := filepath.Join(outputDir, split, category)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
			}
		}
	}
	return nil
}

// Splitter копирует файлы датасета в раскладку train/test/val.
type Splitter struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	storage *storage.Storage
	runID   int64

	progress *progress.Bar
}

// New создаёт новый Splitter.
func New(cfg *config.Config, st *storage.Storage, runID int64) *Splitter {
	return &Splitter{
		cfg:     cfg,
		scanner: scanner.New(cfg),
		storage: st,
		runID:   runID,
	}
}

// SetProgressBar устанавливает прогресс-бар.
func (s *Splitter) SetProgressBar(bar *progress.Bar) {
	s.progress = bar
}

// Run строит план разбиения и копирует файлы через пул воркеров.
func (s *Splitter) Run(ctx context.Context) (*Plan, worker.Stats, error) {
	files, err := s.scanner.ListAll()
	if err != nil {
		return nil, worker.Stats{}, err
	}

	plan := BuildPlan(files, s.cfg.Categories, s.cfg.TrainRatio, s.cfg.TestRatio, s.cfg.Seed)

	if !s.cfg.DryRun {
		if err := EnsureLayout(s.cfg.OutputDir, s.cfg.Splits(), s.cfg.Categories); err != nil {
			return nil, worker.Stats{}, err
		}
	}

	pool := worker.New(s.cfg, s.storage, s.runID)
	if s.progress != nil {
		s.progress.SetTotal(int64(len(plan.Assignments)))
		pool.SetProgressBar(s.progress)
	}

	// Копирование не зависит от порядка, поэтому задания просто
	// раздаются воркерам через канал.
	tasks := make(chan worker.CopyTask, 100)
	go func() {
		defer close(tasks)
		for _, a := range plan.Assignments {
			task := worker.CopyTask{
				File:    a.File,
				Split:   a.Split,
				DstPath: s.DstPath(a),
			}
			select {
			case tasks <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	stats := pool.Process(ctx, tasks)

	if stats.Failed > 0 {
		return plan, stats, fmt.Errorf("копирование завершено с %d ошибками", stats.Failed)
	}

	return plan, stats, nil
}

// DstPath возвращает путь файла в раскладке.
func (s *Splitter) DstPath(a Assignment) string {
	return filepath.Join(s.cfg.OutputDir, a.Split, a.File.Category, filepath.Base(a.File.Path))
}

/*
Возможные расширения:
- Добавить стратификацию по дополнительным атрибутам (размер, дата)
- Добавить режим symlink вместо копирования
*/
