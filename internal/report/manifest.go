// Package report экспортирует CSV манифест подготовленного датасета.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
)

// Row представляет строку манифеста: один файл раскладки.
type Row struct {
	// RelPath - путь файла относительно выходной директории.
	RelPath string

	// Category - категория файла.
	Category string

	// Split - выборка (train/test/val).
	Split string

	// Size - размер файла в байтах.
	Size int64

	// SHA256 - sha256 хэш байтов файла.
	SHA256 string
}

// header - заголовок CSV манифеста.
var header = []string{"path", "category", "split", "size", "sha256"}

// BuildFromLayout собирает строки манифеста из раскладки <out>/<split>/<category>.
// Файлы перечисляются в отсортированном порядке внутри каждой директории.
func BuildFromLayout(cfg *config.Config) ([]Row, error) {
	var rows []Row

	for _, split := range cfg.Splits() {
		for _, category := range cfg.Categories {
			dir := filepath.Join(cfg.OutputDir, split, category)

			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("не удалось прочитать директорию раскладки %s: %w", dir, err)
			}

			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Name() < entries[j].Name()
			})

			for _, entry := range entries {
				if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
					continue
				}
				if !cfg.HasInputExtension(filepath.Ext(entry.Name())) {
					continue
				}

				path := filepath.Join(dir, entry.Name())
				info, err := entry.Info()
				if err != nil {
					return nil, fmt.Errorf("не удалось получить info %s: %w", path, err)
				}

				sha, err := scanner.ComputeSHA256(path)
				if err != nil {
					return nil, err
				}

				rows = append(rows, Row{
					RelPath:  filepath.ToSlash(filepath.Join(split, category, entry.Name())),
					Category: category,
					Split:    split,
					Size:     info.Size(),
					SHA256:   sha,
				})
			}
		}
	}

	return rows, nil
}

// WriteManifest записывает строки манифеста в CSV файл.
func WriteManifest(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию манифеста: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("не удалось создать манифест %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)

	if err := w.Write(header); err != nil {
		return fmt.Errorf("не удалось записать заголовок манифеста: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.RelPath,
			row.Category,
			row.Split,
			strconv.FormatInt(row.Size, 10),
			row.SHA256,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("не удалось записать строку манифеста: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("не удалось записать манифест: %w", err)
	}

	return nil
}

/*
Возможные расширения:
- Добавить экспорт в JSON
- Добавить колонку с отпечатком пикселей
*/
