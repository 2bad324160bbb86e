package dedup

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marccodess/brain-tumor-detection/internal/cache"
	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
)

// testConfig создаёт конфигурацию с датасетом во временной директории.
func testConfig(t *testing.T, categories ...string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatasetDir = t.TempDir()
	cfg.OutputDir = filepath.Join(cfg.DatasetDir, "out")
	cfg.Categories = categories
	cfg.Workers = 2

	for _, cat := range categories {
		if err := os.MkdirAll(cfg.CategoryDir(cat), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

// writeImage записывает PNG с детерминированными пикселями.
// Файлы с одинаковым seed пиксельно идентичны.
func writeImage(t *testing.T, path string, seed uint8, level png.CompressionLevel) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestDetector_Run_OneDuplicateInCategory(t *testing.T) {
	cfg := testConfig(t, "no")
	dir := cfg.CategoryDir("no")

	// a.png и b.png пиксельно идентичны, но закодированы по-разному
	writeImage(t, filepath.Join(dir, "a.png"), 1, png.NoCompression)
	writeImage(t, filepath.Join(dir, "b.png"), 1, png.BestCompression)
	writeImage(t, filepath.Join(dir, "c.png"), 2, png.DefaultCompression)

	d := New(cfg, nil)
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Duplicates) != 1 {
		t.Fatalf("найдено %d дубликатов, want 1", len(result.Duplicates))
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}

	// Выживает первый в отсортированном порядке: a.png
	dup := result.Duplicates[0]
	if filepath.Base(dup.Path) != "b.png" {
		t.Errorf("удалён %s, want b.png", filepath.Base(dup.Path))
	}
	if filepath.Base(dup.CanonicalPath) != "a.png" {
		t.Errorf("канон %s, want a.png", filepath.Base(dup.CanonicalPath))
	}

	if !exists(filepath.Join(dir, "a.png")) {
		t.Error("a.png должен остаться")
	}
	if exists(filepath.Join(dir, "b.png")) {
		t.Error("b.png должен быть удалён")
	}
	if !exists(filepath.Join(dir, "c.png")) {
		t.Error("c.png должен остаться")
	}
}

func TestDetector_Run_CrossCategoryCollapse(t *testing.T) {
	cfg := testConfig(t, "yes", "no")

	// Одинаковые пиксели в разных категориях
	writeImage(t, filepath.Join(cfg.CategoryDir("yes"), "scan.png"), 5, png.DefaultCompression)
	writeImage(t, filepath.Join(cfg.CategoryDir("no"), "scan.png"), 5, png.DefaultCompression)

	d := New(cfg, nil)
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Duplicates) != 1 {
		t.Fatalf("найдено %d дубликатов, want 1", len(result.Duplicates))
	}

	// Категория yes идёт первой в порядке обхода, её файл выживает
	if !exists(filepath.Join(cfg.CategoryDir("yes"), "scan.png")) {
		t.Error("файл в yes должен остаться")
	}
	if exists(filepath.Join(cfg.CategoryDir("no"), "scan.png")) {
		t.Error("файл в no должен быть удалён")
	}
	if result.Duplicates[0].Category != "no" {
		t.Errorf("категория дубликата = %s, want no", result.Duplicates[0].Category)
	}
}

func TestDetector_Run_AllDistinctSurvive(t *testing.T) {
	cfg := testConfig(t, "yes")
	dir := cfg.CategoryDir("yes")

	for i := uint8(1); i <= 4; i++ {
		writeImage(t, filepath.Join(dir, string(rune('a'+i))+".png"), i, png.DefaultCompression)
	}

	d := New(cfg, nil)
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Duplicates) != 0 {
		t.Errorf("найдено %d дубликатов, want 0", len(result.Duplicates))
	}
	if result.Scanned != 4 {
		t.Errorf("Scanned = %d, want 4", result.Scanned)
	}
}

func TestDetector_Run_EmptyCategory(t *testing.T) {
	cfg := testConfig(t, "yes")

	d := New(cfg, nil)
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run для пустой категории: %v", err)
	}

	if result.Scanned != 0 || len(result.Duplicates) != 0 {
		t.Errorf("result = %+v, want пустой", result)
	}
}

func TestDetector_Run_Idempotent(t *testing.T) {
	cfg := testConfig(t, "no")
	dir := cfg.CategoryDir("no")

	writeImage(t, filepath.Join(dir, "a.png"), 1, png.NoCompression)
	writeImage(t, filepath.Join(dir, "b.png"), 1, png.BestCompression)

	d := New(cfg, nil)
	first, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("первый Run: %v", err)
	}
	if len(first.Duplicates) != 1 {
		t.Fatalf("первый проход нашёл %d дубликатов, want 1", len(first.Duplicates))
	}

	// Повторный проход по собственному результату ничего не находит
	second, err := New(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("второй Run: %v", err)
	}
	if len(second.Duplicates) != 0 {
		t.Errorf("второй проход нашёл %d дубликатов, want 0", len(second.Duplicates))
	}
}

func TestDetector_Run_DryRun(t *testing.T) {
	cfg := testConfig(t, "no")
	cfg.DryRun = true
	dir := cfg.CategoryDir("no")

	writeImage(t, filepath.Join(dir, "a.png"), 1, png.NoCompression)
	writeImage(t, filepath.Join(dir, "b.png"), 1, png.BestCompression)

	d := New(cfg, nil)
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Duplicates) != 1 {
		t.Errorf("найдено %d дубликатов, want 1", len(result.Duplicates))
	}
	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 в dry-run", result.Deleted)
	}
	if !exists(filepath.Join(dir, "b.png")) {
		t.Error("b.png не должен удаляться в dry-run")
	}
}

func TestDetector_Run_DeleteFailureFatal(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("от root запрет записи в директорию не действует")
	}

	cfg := testConfig(t, "no")
	dir := cfg.CategoryDir("no")

	writeImage(t, filepath.Join(dir, "a.png"), 1, png.NoCompression)
	writeImage(t, filepath.Join(dir, "b.png"), 1, png.BestCompression)

	// Директория без права записи: удаление дубликата невозможно
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

	d := New(cfg, nil)
	result, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("ожидалась фатальная ошибка удаления")
	}
	if !strings.Contains(err.Error(), "b.png") {
		t.Errorf("ошибка не называет путь к дубликату: %v", err)
	}

	if result == nil || result.Deleted != 0 {
		t.Errorf("result = %+v, want Deleted = 0", result)
	}
	if !exists(filepath.Join(dir, "b.png")) {
		t.Error("b.png должен остаться при ошибке удаления")
	}
}

func TestDetector_Run_DecodeFailureFatal(t *testing.T) {
	cfg := testConfig(t, "no")
	dir := cfg.CategoryDir("no")

	writeImage(t, filepath.Join(dir, "a.png"), 1, png.DefaultCompression)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("мусор"), 0644); err != nil {
		t.Fatal(err)
	}

	d := New(cfg, nil)
	if _, err := d.Run(context.Background()); err == nil {
		t.Error("ожидалась фатальная ошибка декодирования")
	}
}

func TestDetector_Run_MissingCategoryFatal(t *testing.T) {
	cfg := testConfig(t, "yes")
	cfg.Categories = []string{"yes", "absent"}

	d := New(cfg, nil)
	if _, err := d.Run(context.Background()); err == nil {
		t.Error("ожидалась ошибка для отсутствующей категории")
	}
}

func TestDetector_Run_WithCache(t *testing.T) {
	cfg := testConfig(t, "no")
	cfg.CacheEnabled = true
	cfg.CacheDir = t.TempDir()
	dir := cfg.CategoryDir("no")

	writeImage(t, filepath.Join(dir, "a.png"), 1, png.NoCompression)
	writeImage(t, filepath.Join(dir, "b.png"), 1, png.BestCompression)

	fpCache, err := cache.New(cfg)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	// Первый проход заполняет кэш, второй читает из него
	if _, err := New(cfg, fpCache).Run(context.Background()); err != nil {
		t.Fatalf("первый Run: %v", err)
	}
	result, err := New(cfg, fpCache).Run(context.Background())
	if err != nil {
		t.Fatalf("второй Run: %v", err)
	}
	if len(result.Duplicates) != 0 {
		t.Errorf("второй проход нашёл %d дубликатов, want 0", len(result.Duplicates))
	}
}

func TestDetector_Observe(t *testing.T) {
	cfg := testConfig(t, "no")
	dir := cfg.CategoryDir("no")

	writeImage(t, filepath.Join(dir, "a.png"), 1, png.DefaultCompression)

	d := New(cfg, nil)
	if _, err := d.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// Появляется пиксельная копия уже известного файла
	newPath := filepath.Join(dir, "copy.png")
	writeImage(t, newPath, 1, png.BestCompression)

	info, err := os.Stat(newPath)
	if err != nil {
		t.Fatal(err)
	}

	file := scanner.File{Path: newPath, Category: "no"}
	file.Info.Path = newPath
	file.Info.Size = info.Size()
	file.Info.Mtime = info.ModTime().Unix()

	dup, err := d.Observe(context.Background(), file)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if dup == nil {
		t.Fatal("Observe не распознал дубликат")
	}
	if exists(newPath) {
		t.Error("дубликат должен быть удалён")
	}
	if filepath.Base(dup.CanonicalPath) != "a.png" {
		t.Errorf("канон %s, want a.png", filepath.Base(dup.CanonicalPath))
	}

	// Новый уникальный файл остаётся
	uniqPath := filepath.Join(dir, "uniq.png")
	writeImage(t, uniqPath, 9, png.DefaultCompression)
	info, _ = os.Stat(uniqPath)

	uniq := scanner.File{Path: uniqPath, Category: "no"}
	uniq.Info.Size = info.Size()
	uniq.Info.Mtime = info.ModTime().Unix()

	dup, err = d.Observe(context.Background(), uniq)
	if err != nil {
		t.Fatalf("Observe uniq: %v", err)
	}
	if dup != nil {
		t.Error("уникальный файл распознан как дубликат")
	}
	if !exists(uniqPath) {
		t.Error("уникальный файл не должен удаляться")
	}
}
