// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

// Config содержит все настройки подготовки датасета.
type Config struct {
	// DatasetDir - корневая директория датасета с папками категорий.
	DatasetDir string

	// OutputDir - директория для результирующей раскладки train/test/val.
	OutputDir string

	// Categories - список папок категорий в порядке обхода (например yes, no).
	Categories []string

	// CategoryPrefixes - префиксы нормализованных имён по категориям.
	// Если для категории префикс не задан, берётся первая буква в верхнем регистре.
	CategoryPrefixes map[string]string

	// InputExtensions - список расширений входных файлов (без точки, lowercase).
	InputExtensions []string

	// TrainRatio - доля обучающей выборки (0..1).
	TrainRatio float64

	// TestRatio - доля тестовой выборки (0..1).
	TestRatio float64

	// ValRatio - доля валидационной выборки (0..1, может быть 0).
	ValRatio float64

	// SplitPreset - именованный профиль разбиения (standard, holdout, research).
	SplitPreset string

	// Seed - зерно для детерминированного перемешивания перед разбиением.
	Seed int64

	// Workers - количество параллельных воркеров.
	Workers int

	// DBPath - путь к SQLite базе данных журнала операций.
	DBPath string

	// ManifestPath - путь к CSV манифесту датасета.
	ManifestPath string

	// DryRun - режим симуляции без удаления/копирования/переименования.
	DryRun bool

	// Verbose - подробный вывод.
	Verbose bool

	// NoProgress - отключить прогресс-бар.
	NoProgress bool

	// Watch - режим слежения за папками категорий после основного прохода.
	Watch bool

	// MaxMemoryMB - ограничение памяти на декодирование в мегабайтах (0 = без ограничения).
	MaxMemoryMB int

	// CacheEnabled - включить кэш отпечатков между запусками.
	CacheEnabled bool

	// CacheDir - директория для кэша отпечатков.
	CacheDir string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Categories:      []string{"yes", "no"},
		InputExtensions: []string{"jpg", "jpeg", "png", "bmp", "tif", "tiff", "webp", "gif"},
		TrainRatio:      0.70,
		TestRatio:       0.15,
		ValRatio:        0.15,
		Seed:            42,
		Workers:         runtime.NumCPU(),
		DryRun:          false,
		Verbose:         false,
	}
}

// ratioTolerance - допуск при проверке суммы долей разбиения.
const ratioTolerance = 1e-9

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	if c.DatasetDir == "" {
		return fmt.Errorf("директория датасета не указана (--data)")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("выходная директория не указана (--out)")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("не указаны категории датасета (--categories)")
	}
	if len(c.InputExtensions) == 0 {
		return fmt.Errorf("не указаны расширения входных файлов (--ext)")
	}
	if c.TrainRatio <= 0 || c.TrainRatio > 1 {
		return fmt.Errorf("доля train должна быть в (0, 1], получено: %g", c.TrainRatio)
	}
	if c.TestRatio < 0 || c.TestRatio > 1 {
		return fmt.Errorf("доля test должна быть в [0, 1], получено: %g", c.TestRatio)
	}
	if c.ValRatio < 0 || c.ValRatio > 1 {
		return fmt.Errorf("доля val должна быть в [0, 1], получено: %g", c.ValRatio)
	}
	if sum := c.TrainRatio + c.TestRatio + c.ValRatio; math.Abs(sum-1) > ratioTolerance {
		return fmt.Errorf("сумма долей train+test+val должна равняться 1, получено: %g", sum)
	}
	if c.Workers < 1 {
		return fmt.Errorf("количество воркеров должно быть >= 1, получено: %d", c.Workers)
	}

	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat == "" {
			return fmt.Errorf("пустое имя категории")
		}
		if seen[cat] {
			return fmt.Errorf("категория указана дважды: %s", cat)
		}
		seen[cat] = true
	}

	// Устанавливаем пути по умолчанию
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.OutputDir, ".mriprep", "state.sqlite")
	}
	if c.ManifestPath == "" {
		c.ManifestPath = filepath.Join(c.OutputDir, "manifest.csv")
	}

	return nil
}

// HasInputExtension проверяет, поддерживается ли расширение файла.
func (c *Config) HasInputExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range c.InputExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// CategoryDir возвращает путь к папке категории внутри датасета.
func (c *Config) CategoryDir(category string) string {
	return filepath.Join(c.DatasetDir, category)
}

// CategoryPrefix возвращает префикс нормализованных имён для категории.
func (c *Config) CategoryPrefix(category string) string {
	if p, ok := c.CategoryPrefixes[category]; ok && p != "" {
		return p
	}
	r := []rune(category)
	if len(r) == 0 {
		return ""
	}
	return string(unicode.ToUpper(r[0]))
}

// Splits возвращает имена выборок в фиксированном порядке.
// Выборка val опускается, если её доля равна нулю.
func (c *Config) Splits() []string {
	splits := []string{"train", "test"}
	if c.ValRatio > 0 {
		splits = append(splits, "val")
	}
	return splits
}

/*
Возможные расширения:
- Добавить стратифицированное разбиение по размеру категорий
- Добавить exclude-паттерны для файлов
- Добавить поддержку переменных окружения в конфиге
*/
