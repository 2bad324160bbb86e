// Package scanner отвечает за перечисление файлов в папках категорий.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/storage"
)

// File представляет файл датасета.
type File struct {
	// Path - абсолютный путь к файлу.
	Path string

	// Category - категория файла (имя папки).
	Category string

	// RelPath - путь относительно корня датасета.
	RelPath string

	// Info - информация о файле.
	Info storage.FileInfo
}

// Scanner перечисляет файлы в папках категорий датасета.
type Scanner struct {
	cfg *config.Config
}

// New создаёт новый Scanner.
func New(cfg *config.Config) *Scanner {
	return &Scanner{cfg: cfg}
}

// ListCategory возвращает файлы одной категории в отсортированном порядке.
// Сканирование нерекурсивное: вложенные директории пропускаются.
// Порядок перечисления фиксирован (сортировка по имени), чтобы результат
// дедупликации не зависел от порядка выдачи файловой системы.
// Отсутствие папки категории - фатальная ошибка.
func (s *Scanner) ListCategory(category string) ([]File, error) {
	dir := s.cfg.CategoryDir(category)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать папку категории %s: %w", dir, err)
	}

	// os.ReadDir уже сортирует по имени, но не полагаемся на это
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Пропускаем скрытые и временные файлы
		if strings.HasPrefix(name, ".") {
			continue
		}

		if !s.cfg.HasInputExtension(filepath.Ext(name)) {
			continue
		}

		path := filepath.Join(dir, name)
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("не удалось получить info %s: %w", path, err)
		}

		relPath, _ := filepath.Rel(s.cfg.DatasetDir, path)

		files = append(files, File{
			Path:     absPath,
			Category: category,
			RelPath:  relPath,
			Info: storage.FileInfo{
				Path:  absPath,
				Size:  info.Size(),
				Mtime: info.ModTime().Unix(),
			},
		})
	}

	return files, nil
}

// ListAll возвращает файлы всех категорий в порядке их объявления.
func (s *Scanner) ListAll() (map[string][]File, error) {
	result := make(map[string][]File, len(s.cfg.Categories))

	for _, category := range s.cfg.Categories {
		files, err := s.ListCategory(category)
		if err != nil {
			return nil, err
		}
		result[category] = files
	}

	return result, nil
}

// CountFiles возвращает количество файлов во всех категориях (для progress bar).
func (s *Scanner) CountFiles() (int64, error) {
	var count int64

	for _, category := range s.cfg.Categories {
		files, err := s.ListCategory(category)
		if err != nil {
			return 0, err
		}
		count += int64(len(files))
	}

	return count, nil
}

// ComputeSHA256 вычисляет sha256 хэш байтов файла.
// Используется для идемпотентности копирования, не для дедупликации:
// дедупликация сравнивает отпечатки декодированных пикселей.
func ComputeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("не удалось прочитать файл: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

/*
Возможные расширения:
- Добавить поддержку glob-паттернов для фильтрации
- Добавить рекурсивный режим для вложенных подкатегорий
- Добавить поддержку symlinks
*/
