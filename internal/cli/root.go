// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marccodess/brain-tumor-detection/internal/cache"
	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/dedup"
	"github.com/marccodess/brain-tumor-detection/internal/namer"
	"github.com/marccodess/brain-tumor-detection/internal/progress"
	"github.com/marccodess/brain-tumor-detection/internal/report"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
	"github.com/marccodess/brain-tumor-detection/internal/splitter"
	"github.com/marccodess/brain-tumor-detection/internal/storage"
	"github.com/marccodess/brain-tumor-detection/internal/watcher"
	"github.com/marccodess/brain-tumor-detection/internal/worker"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

// cfg содержит глобальную конфигурацию.
var cfg = config.DefaultConfig()

var (
	// configPath - явный путь к файлу конфигурации (--config).
	configPath string

	// saveProfileName - имя профиля для сохранения текущих настроек.
	saveProfileName string

	// loadProfileName - имя профиля для загрузки настроек.
	loadProfileName string
)

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mriprep",
		Short: "Утилита подготовки датасета МРТ-снимков",
		Long: `mriprep - CLI утилита подготовки датасета МРТ-снимков мозга для обучения модели.

Пайплайн: удаление дубликатов изображений по отпечатку декодированных пикселей,
разбиение на выборки train/test/val, нормализация имён файлов и CSV манифест.
Копирование идемпотентно: повторный запуск не дублирует уже скопированные файлы.

Примеры:
  # Полный пайплайн с разбиением 70/15/15
  mriprep --data ./brain_tumor_dataset --out ./prepared

  # Разбиение 80/20 без валидационной выборки
  mriprep --data ./dataset --out ./prepared --split-preset holdout

  # Только поиск и удаление дубликатов
  mriprep dedup --data ./dataset --out ./prepared

  # Dry run (симуляция без удаления и копирования)
  mriprep --data ./dataset --out ./prepared --dry-run`,
		RunE: runPipeline,
	}

	// Флаги общие для корневой команды и подкоманд этапов
	flags := rootCmd.PersistentFlags()

	// Входные параметры
	flags.StringVar(&cfg.DatasetDir, "data", "", "Корневая директория датасета с папками категорий (обязательно)")
	flags.StringVar(&cfg.OutputDir, "out", "", "Директория для раскладки train/test/val (обязательно)")
	flags.StringSliceVar(&cfg.Categories, "categories", cfg.Categories,
		"Папки категорий через запятую в порядке обхода (например: yes,no)")
	flags.StringSliceVar(&cfg.InputExtensions, "ext", cfg.InputExtensions,
		"Расширения входных файлов через запятую (например: jpg,png)")

	// Разбиение
	flags.Float64Var(&cfg.TrainRatio, "train", cfg.TrainRatio, "Доля обучающей выборки")
	flags.Float64Var(&cfg.TestRatio, "test", cfg.TestRatio, "Доля тестовой выборки")
	flags.Float64Var(&cfg.ValRatio, "val", cfg.ValRatio, "Доля валидационной выборки (0 = без val)")
	flags.StringVar(&cfg.SplitPreset, "split-preset", "",
		fmt.Sprintf("Пресет разбиения: %s", strings.Join(config.SplitPresetNames(), ", ")))
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Зерно детерминированного перемешивания")

	// Производительность
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Количество параллельных воркеров")
	flags.IntVar(&cfg.MaxMemoryMB, "max-memory", cfg.MaxMemoryMB,
		"Ограничение памяти на декодирование в МБ (0 = без ограничения)")
	flags.BoolVar(&cfg.CacheEnabled, "cache", cfg.CacheEnabled, "Кэшировать отпечатки между запусками")

	// Пути
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Путь к SQLite базе журнала (по умолчанию <out>/.mriprep/state.sqlite)")
	flags.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "Путь к CSV манифесту (по умолчанию <out>/manifest.csv)")

	// Режим работы
	flags.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Симуляция без удаления, копирования и переименования")
	flags.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Следить за папками категорий после основного прохода")

	// Вывод
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Подробный вывод")
	flags.BoolVar(&cfg.NoProgress, "no-progress", cfg.NoProgress, "Отключить прогресс-бар")

	// Конфигурация и профили
	flags.StringVar(&configPath, "config", "", "Путь к YAML файлу конфигурации")
	flags.StringVar(&saveProfileName, "save-profile", "", "Сохранить текущие настройки как именованный профиль")
	flags.StringVar(&loadProfileName, "load-profile", "", "Загрузить настройки из именованного профиля")

	// Пресет применяется после парсинга флагов: явные доли имеют приоритет
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfg.SplitPreset == "" {
			return nil
		}
		train, test, val := cfg.TrainRatio, cfg.TestRatio, cfg.ValRatio
		if err := cfg.ApplySplitPreset(cfg.SplitPreset); err != nil {
			return err
		}
		if cmd.Flags().Changed("train") {
			cfg.TrainRatio = train
		}
		if cmd.Flags().Changed("test") {
			cfg.TestRatio = test
		}
		if cmd.Flags().Changed("val") {
			cfg.ValRatio = val
		}
		return nil
	}

	// Подкоманды
	rootCmd.AddCommand(newDedupCmd())
	rootCmd.AddCommand(newSplitCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// signalContext возвращает контекст, отменяемый по SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n⚠️  Получен сигнал завершения, останавливаем...")
		cancel()
	}()

	return ctx, cancel
}

// prepare валидирует конфигурацию, открывает журнал и регистрирует запуск.
func prepare(command string) (*storage.Storage, int64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, 0, fmt.Errorf("ошибка конфигурации: %w", err)
	}

	if saveProfileName != "" {
		path, err := config.SaveProfile(saveProfileName, cfg)
		if err != nil {
			return nil, 0, err
		}
		fmt.Printf("💾 Профиль '%s' сохранён: %s\n", saveProfileName, path)
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, 0, fmt.Errorf("не удалось инициализировать БД: %w", err)
	}

	// Очищаем прерванные задачи
	cleaned, err := store.CleanupInProgress()
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Не удалось очистить in_progress: %v\n", err)
	} else if cleaned > 0 {
		fmt.Printf("🧹 Очищено %d прерванных задач\n", cleaned)
	}

	runID, err := store.StartRun(command)
	if err != nil {
		_ = store.Close()
		return nil, 0, err
	}

	return store, runID, nil
}

// runPipeline выполняет полный пайплайн: дедупликация, разбиение,
// нормализация имён, манифест и опционально режим слежения.
func runPipeline(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	store, runID, err := prepare("pipeline")
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("🚀 Подготовка датасета:\n")
	fmt.Printf("   Датасет: %s\n", cfg.DatasetDir)
	fmt.Printf("   Выход: %s\n", cfg.OutputDir)
	fmt.Printf("   Категории: %s\n", strings.Join(cfg.Categories, ", "))
	fmt.Printf("   Разбиение: train=%.2f test=%.2f val=%.2f (seed=%d)\n",
		cfg.TrainRatio, cfg.TestRatio, cfg.ValRatio, cfg.Seed)
	fmt.Printf("   Воркеров: %d\n", cfg.Workers)
	if cfg.DryRun {
		fmt.Println("   ⚠️  Dry-run режим (без удаления и копирования)")
	}
	fmt.Println()

	// Этап 1: дедупликация
	detector, dedupResult, err := runDedupStage(ctx, store, runID)
	if err != nil {
		return err
	}

	// Этап 2: разбиение и копирование
	_, copyStats, err := runSplitStage(ctx, store, runID)
	if err != nil {
		return err
	}

	// Этап 3: нормализация имён в раскладке
	renamed, err := runRenameLayoutStage(store, runID)
	if err != nil {
		return err
	}

	// Этап 4: CSV манифест
	if !cfg.DryRun {
		if err := runReportStage(); err != nil {
			return err
		}
	}

	if err := store.FinishRun(runID); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Не удалось завершить запуск в журнале: %v\n", err)
	}

	duration := time.Since(startTime)
	fmt.Println()
	fmt.Printf("📊 Результаты:\n")
	fmt.Printf("   Просканировано: %d\n", dedupResult.Scanned)
	fmt.Printf("   Дубликатов удалено: %d\n", dedupResult.Deleted)
	fmt.Printf("   Скопировано: %d (%s)\n", copyStats.Copied, worker.FormatBytes(copyStats.CopiedBytes))
	fmt.Printf("   Пропущено: %d\n", copyStats.Skipped)
	fmt.Printf("   Переименовано: %d\n", renamed)
	fmt.Printf("   Время: %s\n", duration.Round(time.Millisecond))

	if cfg.Watch {
		return runWatchMode(ctx, store, runID, detector)
	}

	return nil
}

// runDedupStage выполняет поиск и удаление дубликатов с журналированием.
func runDedupStage(ctx context.Context, store *storage.Storage, runID int64) (*dedup.Detector, *dedup.Result, error) {
	fpCache, err := cache.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	detector := dedup.New(cfg, fpCache)

	total, err := scanner.New(cfg).CountFiles()
	if err != nil {
		return nil, nil, err
	}

	bar := progress.New(progress.Options{
		Total:       total,
		Description: "🔍 Дедупликация",
		Disabled:    cfg.NoProgress,
	})
	detector.SetProgressBar(bar)

	result, err := detector.Run(ctx)
	bar.Finish()
	if err != nil {
		return nil, nil, err
	}

	// Журналируем фактические удаления
	if !cfg.DryRun {
		for _, dup := range result.Duplicates {
			if err := store.RecordDedupDelete(runID, dup.Path, dup.CanonicalPath, dup.Category, dup.Fingerprint); err != nil {
				return nil, nil, err
			}
		}
	}

	fmt.Printf("🔍 Найдено дубликатов: %d\n", len(result.Duplicates))
	if cfg.Verbose {
		for _, dup := range result.Duplicates {
			fmt.Printf("   🗑  %s (канон: %s)\n", dup.Path, dup.CanonicalPath)
		}
	}

	return detector, result, nil
}

// runSplitStage строит план разбиения и копирует файлы в раскладку.
func runSplitStage(ctx context.Context, store *storage.Storage, runID int64) (*splitter.Plan, worker.Stats, error) {
	total, err := scanner.New(cfg).CountFiles()
	if err != nil {
		return nil, worker.Stats{}, err
	}

	bar := progress.New(progress.Options{
		Total:       total,
		Description: "📂 Копирование",
		Disabled:    cfg.NoProgress,
	})

	split := splitter.New(cfg, store, runID)
	split.SetProgressBar(bar)

	plan, stats, err := split.Run(ctx)
	bar.Finish()
	if err != nil {
		return plan, stats, err
	}

	for _, category := range cfg.Categories {
		counts := plan.Counts[category]
		fmt.Printf("📂 %s: train=%d test=%d val=%d\n",
			category, counts["train"], counts["test"], counts["val"])
	}

	return plan, stats, nil
}

// runRenameLayoutStage нормализует имена файлов в раскладке.
// Возвращает количество переименований.
func runRenameLayoutStage(store *storage.Storage, runID int64) (int, error) {
	if cfg.DryRun {
		return 0, nil
	}

	result, err := namer.New(cfg).RunLayout()
	if err != nil {
		return 0, err
	}

	renamed := 0
	for key, renames := range result {
		category := key
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			category = key[idx+1:]
		}
		for _, rn := range renames {
			if err := store.RecordRename(runID, rn.OldPath, rn.NewPath, category); err != nil {
				return renamed, err
			}
			renamed++
		}
	}

	return renamed, nil
}

// runReportStage строит CSV манифест раскладки.
func runReportStage() error {
	rows, err := report.BuildFromLayout(cfg)
	if err != nil {
		return err
	}

	if err := report.WriteManifest(cfg.ManifestPath, rows); err != nil {
		return err
	}

	fmt.Printf("📄 Манифест: %s (%d строк)\n", cfg.ManifestPath, len(rows))
	return nil
}

// runWatchMode следит за папками категорий и дедуплицирует новые файлы.
// Индекс отпечатков наследуется от основного прохода, поэтому новый файл,
// совпадающий с уже виденным, удаляется сразу.
func runWatchMode(ctx context.Context, store *storage.Storage, runID int64, detector *dedup.Detector) error {
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}

	files, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	fmt.Println("👀 Режим слежения запущен (Ctrl+C для выхода)")

	for file := range files {
		dup, err := detector.Observe(ctx, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", file.Path, err)
			continue
		}

		if dup == nil {
			if cfg.Verbose {
				fmt.Printf("✅ Новый файл: %s\n", file.RelPath)
			}
			continue
		}

		if !cfg.DryRun {
			if err := store.RecordDedupDelete(runID, dup.Path, dup.CanonicalPath, dup.Category, dup.Fingerprint); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Не удалось записать удаление в журнал: %v\n", err)
			}
		}
		fmt.Print(watchDupMessage(cfg.DryRun, dup))
	}

	return nil
}

// watchDupMessage формирует сообщение о дубликате в режиме слежения.
// В dry-run файл не удаляется, и сообщение не должно утверждать обратное.
func watchDupMessage(dryRun bool, dup *dedup.Duplicate) string {
	if dryRun {
		return fmt.Sprintf("🔄 [dry-run] Дубликат: %s (канон: %s)\n", dup.Path, dup.CanonicalPath)
	}
	return fmt.Sprintf("🗑  Удалён дубликат: %s (канон: %s)\n", dup.Path, dup.CanonicalPath)
}

// newDedupCmd создаёт команду dedup: только поиск и удаление дубликатов.
func newDedupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Найти и удалить дубликаты изображений в папках категорий",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, runID, err := prepare("dedup")
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := signalContext()
			defer cancel()

			_, result, err := runDedupStage(ctx, store, runID)
			if err != nil {
				return err
			}

			if err := store.FinishRun(runID); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Не удалось завершить запуск в журнале: %v\n", err)
			}

			fmt.Printf("📊 Просканировано: %d, удалено: %d\n", result.Scanned, result.Deleted)
			return nil
		},
	}
}

// newSplitCmd создаёт команду split: только разбиение и копирование.
func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Разбить датасет на выборки train/test/val",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, runID, err := prepare("split")
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := signalContext()
			defer cancel()

			_, stats, err := runSplitStage(ctx, store, runID)
			if err != nil {
				return err
			}

			if err := store.FinishRun(runID); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Не удалось завершить запуск в журнале: %v\n", err)
			}

			fmt.Printf("📊 Скопировано: %d (%s), пропущено: %d\n",
				stats.Copied, worker.FormatBytes(stats.CopiedBytes), stats.Skipped)
			return nil
		},
	}
}

// newRenameCmd создаёт команду rename: нормализация имён в папках категорий датасета.
func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename",
		Short: "Нормализовать имена файлов в папках категорий датасета",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, runID, err := prepare("rename")
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := namer.New(cfg).Run()
			if err != nil {
				return err
			}

			renamed := 0
			for category, renames := range result {
				for _, rn := range renames {
					if !cfg.DryRun {
						if err := store.RecordRename(runID, rn.OldPath, rn.NewPath, category); err != nil {
							return err
						}
					}
					renamed++
					if cfg.Verbose {
						fmt.Printf("✅ %s -> %s\n", rn.OldPath, rn.NewPath)
					}
				}
			}

			if err := store.FinishRun(runID); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Не удалось завершить запуск в журнале: %v\n", err)
			}

			if cfg.DryRun {
				fmt.Printf("📊 [dry-run] Запланировано переименований: %d\n", renamed)
			} else {
				fmt.Printf("📊 Переименовано: %d\n", renamed)
			}
			return nil
		},
	}
}

// newReportCmd создаёт команду report: CSV манифест существующей раскладки.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Построить CSV манифест раскладки train/test/val",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.OutputDir == "" {
				return fmt.Errorf("выходная директория не указана (--out)")
			}
			if cfg.ManifestPath == "" {
				cfg.ManifestPath = filepath.Join(cfg.OutputDir, "manifest.csv")
			}
			return runReportStage()
		},
	}
}

// newStatsCmd создаёт команду stats.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Показать статистику журнала операций",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DBPath == "" {
				if cfg.OutputDir == "" {
					return fmt.Errorf("укажите путь к БД через --db или выходную директорию через --out")
				}
				cfg.DBPath = filepath.Join(cfg.OutputDir, ".mriprep", "state.sqlite")
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("не удалось открыть БД: %w", err)
			}
			defer func() { _ = store.Close() }()

			stats, err := store.GetStats()
			if err != nil {
				return fmt.Errorf("не удалось получить статистику: %w", err)
			}

			fmt.Printf("📊 Статистика журнала:\n")
			fmt.Printf("   Запусков: %d\n", stats.Runs)
			fmt.Printf("   Дубликатов удалено: %d\n", stats.DedupDeleted)
			fmt.Printf("   Скопировано: %d\n", stats.Copied)
			fmt.Printf("   Переименовано: %d\n", stats.Renamed)
			fmt.Printf("   Ошибок: %d\n", stats.Failed)

			return nil
		},
	}
}

// newVersionCmd создаёт команду version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mriprep %s (built %s)\n", Version, BuildTime)
		},
	}
}

// prescanFlag извлекает значение флага до парсинга cobra.
// Нужно для --config и --load-profile: файл конфигурации применяется
// к значениям по умолчанию, чтобы явные CLI флаги имели приоритет.
func prescanFlag(args []string, name string) string {
	prefix := "--" + name
	for i, arg := range args {
		if arg == prefix && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, prefix+"=") {
			return strings.TrimPrefix(arg, prefix+"=")
		}
	}
	return ""
}

// applyFileConfig загружает файл конфигурации и именованный профиль
// до построения команды.
func applyFileConfig(args []string) error {
	fc, path, err := config.FindAndLoadConfig(prescanFlag(args, "config"))
	if err != nil {
		return err
	}
	if fc != nil {
		if err := fc.ApplyToConfig(cfg); err != nil {
			return fmt.Errorf("ошибка в файле конфигурации %s: %w", path, err)
		}
	}

	if name := prescanFlag(args, "load-profile"); name != "" {
		pfc, ppath, err := config.LoadProfile(name)
		if err != nil {
			return err
		}
		if err := pfc.ApplyToConfig(cfg); err != nil {
			return fmt.Errorf("ошибка в профиле %s: %w", ppath, err)
		}
		fmt.Printf("📦 Загружен профиль '%s': %s\n", name, ppath)
	}

	return nil
}

// Execute запускает CLI.
func Execute() {
	if err := applyFileConfig(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	if err := NewRootCmd().Execute(); err != nil {
		// Не выводим ошибку, cobra уже вывела
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Добавить команду clean для очистки журнала
- Добавить экспорт статистики в JSON
*/
