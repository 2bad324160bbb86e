// Package namer нормализует имена файлов в папках категорий.
package namer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marccodess/brain-tumor-detection/internal/config"
)

// tmpSuffix - суффикс промежуточных имён двухфазного переименования.
const tmpSuffix = ".mriprep-tmp"

// Rename описывает одно выполненное переименование.
type Rename struct {
	// OldPath - исходный путь.
	OldPath string

	// NewPath - нормализованный путь.
	NewPath string
}

// Renamer приводит имена файлов к виду <префикс>_<номер>.<расширение>.
type Renamer struct {
	cfg *config.Config
}

// New создаёт новый Renamer.
func New(cfg *config.Config) *Renamer {
	return &Renamer{cfg: cfg}
}

// NormalizeDir нормализует имена файлов изображений в директории.
// Файлы нумеруются с единицы в отсортированном порядке имён, расширение
// приводится к нижнему регистру: Y_1.jpg, Y_2.png, ...
//
// Переименование двухфазное: сначала все файлы получают временные имена,
// затем целевые. Иначе цепочка вида b.png -> Y_1.png при уже существующем
// Y_1.png затёрла бы чужой файл.
//
// Возвращает список фактических переименований; файлы с уже корректными
// именами не трогаются, поэтому операция идемпотентна.
func (r *Renamer) NormalizeDir(dir, prefix string) ([]Rename, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать директорию %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		if !r.cfg.HasInputExtension(filepath.Ext(name)) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// Вычисляем целевые имена
	type pending struct {
		src, tmp, dst string
	}
	var work []pending
	var renames []Rename

	for i, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		target := fmt.Sprintf("%s_%d%s", prefix, i+1, ext)
		if name == target {
			continue
		}
		work = append(work, pending{
			src: filepath.Join(dir, name),
			tmp: filepath.Join(dir, fmt.Sprintf("%s.%d%s", target, i, tmpSuffix)),
			dst: filepath.Join(dir, target),
		})
	}

	if r.cfg.DryRun {
		for _, w := range work {
			renames = append(renames, Rename{OldPath: w.src, NewPath: w.dst})
		}
		return renames, nil
	}

	// Фаза 1: уводим все файлы на временные имена
	for _, w := range work {
		if err := os.Rename(w.src, w.tmp); err != nil {
			return renames, fmt.Errorf("не удалось переименовать %s: %w", w.src, err)
		}
	}

	// Фаза 2: присваиваем целевые имена
	for _, w := range work {
		if err := os.Rename(w.tmp, w.dst); err != nil {
			return renames, fmt.Errorf("не удалось переименовать %s -> %s: %w", w.tmp, w.dst, err)
		}
		renames = append(renames, Rename{OldPath: w.src, NewPath: w.dst})
	}

	return renames, nil
}

// Run нормализует имена во всех папках категорий датасета.
// Возвращает переименования по категориям.
func (r *Renamer) Run() (map[string][]Rename, error) {
	result := make(map[string][]Rename, len(r.cfg.Categories))

	for _, category := range r.cfg.Categories {
		renames, err := r.NormalizeDir(r.cfg.CategoryDir(category), r.cfg.CategoryPrefix(category))
		if err != nil {
			return result, err
		}
		result[category] = renames
	}

	return result, nil
}

// RunLayout нормализует имена в директориях раскладки <out>/<split>/<category>.
func (r *Renamer) RunLayout() (map[string][]Rename, error) {
	result := make(map[string][]Rename)

	for _, split := range r.cfg.Splits() {
		for _, category := range r.cfg.Categories {
			dir := filepath.Join(r.cfg.OutputDir, split, category)
			renames, err := r.NormalizeDir(dir, r.cfg.CategoryPrefix(category))
			if err != nil {
				return result, err
			}
			result[split+"/"+category] = renames
		}
	}

	return result, nil
}

/*
Возможные расширения:
- Добавить настраиваемый шаблон имени (например с нулями: Y_001.jpg)
- Добавить сохранение исходного имени в расширенных атрибутах
*/
