// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны - если не указаны, используются значения по умолчанию.
type FileConfig struct {
	// Dataset - настройки входного датасета.
	Dataset *DatasetConfig `yaml:"dataset,omitempty"`

	// Output - настройки выходной раскладки.
	Output *OutputConfig `yaml:"output,omitempty"`

	// Split - настройки разбиения на выборки.
	Split *SplitConfig `yaml:"split,omitempty"`

	// Processing - настройки обработки.
	Processing *ProcessingConfig `yaml:"processing,omitempty"`

	// Paths - настройки путей.
	Paths *PathsConfig `yaml:"paths,omitempty"`
}

// DatasetConfig содержит настройки входного датасета.
type DatasetConfig struct {
	// Dir - корневая директория датасета.
	Dir string `yaml:"dir,omitempty"`

	// Categories - список папок категорий в порядке обхода.
	Categories []string `yaml:"categories,omitempty"`

	// Prefixes - префиксы нормализованных имён по категориям.
	Prefixes map[string]string `yaml:"prefixes,omitempty"`

	// Extensions - список расширений входных файлов.
	Extensions []string `yaml:"extensions,omitempty"`
}

// OutputConfig содержит настройки выходной раскладки.
type OutputConfig struct {
	// Dir - директория для раскладки train/test/val.
	Dir string `yaml:"dir,omitempty"`

	// Manifest - путь к CSV манифесту.
	Manifest string `yaml:"manifest,omitempty"`
}

// SplitConfig содержит настройки разбиения на выборки.
type SplitConfig struct {
	// Preset - именованный пресет разбиения (standard, holdout, research).
	Preset string `yaml:"preset,omitempty"`

	// Train - доля обучающей выборки.
	Train float64 `yaml:"train,omitempty"`

	// Test - доля тестовой выборки.
	Test float64 `yaml:"test,omitempty"`

	// Val - доля валидационной выборки.
	Val *float64 `yaml:"val,omitempty"`

	// Seed - зерно перемешивания.
	Seed *int64 `yaml:"seed,omitempty"`
}

// ProcessingConfig содержит настройки обработки.
type ProcessingConfig struct {
	// Workers - количество параллельных воркеров.
	Workers int `yaml:"workers,omitempty"`

	// DryRun - режим симуляции.
	DryRun bool `yaml:"dry_run,omitempty"`

	// Verbose - подробный вывод.
	Verbose bool `yaml:"verbose,omitempty"`

	// NoProgress - отключить прогресс-бар.
	NoProgress bool `yaml:"no_progress,omitempty"`

	// Watch - режим слежения за папками категорий.
	Watch bool `yaml:"watch,omitempty"`

	// MaxMemoryMB - ограничение памяти на декодирование.
	MaxMemoryMB int `yaml:"max_memory_mb,omitempty"`

	// Cache - включить кэш отпечатков.
	Cache bool `yaml:"cache,omitempty"`
}

// PathsConfig содержит настройки путей.
type PathsConfig struct {
	// DB - путь к SQLite базе данных.
	DB string `yaml:"db,omitempty"`

	// CacheDir - директория кэша отпечатков.
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./mriprep.yaml (текущая директория)
// 2. ./mriprep.yml
// 3. ~/.config/mriprep/config.yaml
// 4. ~/.config/mriprep/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		"mriprep.yaml",
		"mriprep.yml",
	}

	// Добавляем путь в домашней директории
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "mriprep", "config.yaml"),
			filepath.Join(home, ".config", "mriprep", "config.yml"),
		)
	}

	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML в %s: %w", path, err)
	}

	return &fc, nil
}

// SaveToFile сохраняет конфигурацию в YAML файл.
func (fc *FileConfig) SaveToFile(path string) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать конфигурацию: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("не удалось записать файл %s: %w", path, err)
	}

	return nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	// Если путь указан явно
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", fmt.Errorf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	// Ищем в стандартных путях
	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}

	return nil, "", nil
}

// ApplyToConfig применяет настройки из файла к основной конфигурации.
// CLI флаги имеют приоритет над файлом конфигурации, поэтому
// эта функция должна вызываться до парсинга CLI флагов.
func (fc *FileConfig) ApplyToConfig(cfg *Config) error {
	if fc == nil {
		return nil
	}

	// Dataset
	if fc.Dataset != nil {
		if fc.Dataset.Dir != "" {
			cfg.DatasetDir = fc.Dataset.Dir
		}
		if len(fc.Dataset.Categories) > 0 {
			cfg.Categories = fc.Dataset.Categories
		}
		if len(fc.Dataset.Prefixes) > 0 {
			cfg.CategoryPrefixes = fc.Dataset.Prefixes
		}
		if len(fc.Dataset.Extensions) > 0 {
			cfg.InputExtensions = fc.Dataset.Extensions
		}
	}

	// Output
	if fc.Output != nil {
		if fc.Output.Dir != "" {
			cfg.OutputDir = fc.Output.Dir
		}
		if fc.Output.Manifest != "" {
			cfg.ManifestPath = fc.Output.Manifest
		}
	}

	// Split: сначала пресет, затем явные доли поверх него
	if fc.Split != nil {
		if fc.Split.Preset != "" {
			if err := cfg.ApplySplitPreset(fc.Split.Preset); err != nil {
				return err
			}
		}
		if fc.Split.Train > 0 {
			cfg.TrainRatio = fc.Split.Train
		}
		if fc.Split.Test > 0 {
			cfg.TestRatio = fc.Split.Test
		}
		if fc.Split.Val != nil {
			cfg.ValRatio = *fc.Split.Val
		}
		if fc.Split.Seed != nil {
			cfg.Seed = *fc.Split.Seed
		}
	}

	// Processing
	if fc.Processing != nil {
		if fc.Processing.Workers > 0 {
			cfg.Workers = fc.Processing.Workers
		}
		if fc.Processing.DryRun {
			cfg.DryRun = true
		}
		if fc.Processing.Verbose {
			cfg.Verbose = true
		}
		if fc.Processing.NoProgress {
			cfg.NoProgress = true
		}
		if fc.Processing.Watch {
			cfg.Watch = true
		}
		if fc.Processing.MaxMemoryMB > 0 {
			cfg.MaxMemoryMB = fc.Processing.MaxMemoryMB
		}
		if fc.Processing.Cache {
			cfg.CacheEnabled = true
		}
	}

	// Paths
	if fc.Paths != nil {
		if fc.Paths.DB != "" {
			cfg.DBPath = fc.Paths.DB
		}
		if fc.Paths.CacheDir != "" {
			cfg.CacheDir = fc.Paths.CacheDir
		}
	}

	return nil
}

// FromConfig создаёт FileConfig из основной конфигурации.
// Используется для сохранения именованных профилей.
func FromConfig(cfg *Config) *FileConfig {
	val := cfg.ValRatio
	seed := cfg.Seed

	return &FileConfig{
		Dataset: &DatasetConfig{
			Dir:        cfg.DatasetDir,
			Categories: cfg.Categories,
			Prefixes:   cfg.CategoryPrefixes,
			Extensions: cfg.InputExtensions,
		},
		Output: &OutputConfig{
			Dir:      cfg.OutputDir,
			Manifest: cfg.ManifestPath,
		},
		Split: &SplitConfig{
			Preset: cfg.SplitPreset,
			Train:  cfg.TrainRatio,
			Test:   cfg.TestRatio,
			Val:    &val,
			Seed:   &seed,
		},
		Processing: &ProcessingConfig{
			Workers:     cfg.Workers,
			DryRun:      cfg.DryRun,
			Verbose:     cfg.Verbose,
			NoProgress:  cfg.NoProgress,
			Watch:       cfg.Watch,
			MaxMemoryMB: cfg.MaxMemoryMB,
			Cache:       cfg.CacheEnabled,
		},
		Paths: &PathsConfig{
			DB:       cfg.DBPath,
			CacheDir: cfg.CacheDir,
		},
	}
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# mriprep Configuration File
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.

dataset:
  # Корневая директория датасета с папками категорий
  dir: "./brain_tumor_dataset"
  # Папки категорий в порядке обхода
  categories:
    - yes
    - no
  # Префиксы нормализованных имён (по умолчанию - первая буква категории)
  prefixes:
    yes: Y
    no: N
  # Расширения входных файлов (без точки)
  extensions:
    - jpg
    - jpeg
    - png

output:
  # Директория для раскладки train/test/val
  dir: "./prepared"
  # Путь к CSV манифесту (по умолчанию <out>/manifest.csv)
  manifest: ""

split:
  # Пресет разбиения: standard (70/15/15), holdout (80/20), research (60/20/20)
  preset: standard
  # Явные доли перекрывают пресет
  # train: 0.7
  # test: 0.15
  # val: 0.15
  # Зерно детерминированного перемешивания
  seed: 42

processing:
  # Количество параллельных воркеров (по умолчанию = CPU cores)
  workers: 8
  # Симуляция без удаления и копирования
  dry_run: false
  # Подробный вывод
  verbose: false
  # Отключить прогресс-бар
  no_progress: false
  # Следить за папками категорий после основного прохода
  watch: false
  # Ограничение памяти на декодирование (МБ, 0 = без ограничения)
  max_memory_mb: 0
  # Кэшировать отпечатки между запусками
  cache: false

paths:
  # Путь к SQLite базе данных журнала
  db: ""
  # Директория кэша отпечатков
  cache_dir: ""
`
}

/*
Возможные расширения:
- Добавить поддержку TOML формата
- Добавить команду 'config init' для генерации конфига
- Добавить валидацию значений в файле конфигурации
*/
