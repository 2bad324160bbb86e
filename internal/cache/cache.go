// Package cache реализует кэширование отпечатков изображений между запусками.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marccodess/brain-tumor-detection/internal/config"
)

// Cache хранит отпечатки декодированных пикселей по ключу (путь, размер, mtime),
// чтобы не декодировать неизменившиеся файлы повторно.
// Кэшируется только соответствие файл → отпечаток; индекс отпечатков
// текущего запуска никогда не сохраняется, поэтому решения дедупликации
// принимаются строго в рамках одного запуска.
type Cache struct {
	// dir - директория для кэша.
	dir string

	// enabled - включён ли кэш.
	enabled bool
}

// New создаёт новый Cache.
func New(cfg *config.Config) (*Cache, error) {
	if !cfg.CacheEnabled {
		return &Cache{enabled: false}, nil
	}

	dir := cfg.CacheDir
	if dir == "" {
		dir = filepath.Join(cfg.OutputDir, ".mriprep", "cache")
	}

	// Создаём директорию кэша
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию кэша: %w", err)
	}

	return &Cache{
		dir:     dir,
		enabled: true,
	}, nil
}

// IsEnabled возвращает true если кэш включён.
func (c *Cache) IsEnabled() bool {
	return c.enabled
}

// Key генерирует ключ кэша по пути файла, его размеру и времени модификации.
// Изменение файла инвалидирует запись автоматически.
func (c *Cache) Key(path string, size, mtime int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d", path, size, mtime)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Get возвращает закэшированный отпечаток по ключу.
func (c *Cache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return "", false
	}

	digest := strings.TrimSpace(string(data))
	if digest == "" {
		return "", false
	}

	return digest, true
}

// Put сохраняет отпечаток в кэш.
func (c *Cache) Put(key, digest string) error {
	if !c.enabled {
		return nil
	}

	if err := os.WriteFile(c.entryPath(key), []byte(digest+"\n"), 0644); err != nil {
		return fmt.Errorf("не удалось записать в кэш: %w", err)
	}

	return nil
}

// Clear удаляет все записи кэша.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("не удалось прочитать директорию кэша: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".fp") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("не удалось удалить запись кэша %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// entryPath возвращает путь к файлу записи кэша.
func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".fp")
}

/*
Возможные расширения:
- Добавить ограничение размера кэша с вытеснением старых записей
- Добавить хранение кэша одним файлом вместо множества мелких
*/
