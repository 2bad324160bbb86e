package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marccodess/brain-tumor-detection/internal/config"
	"github.com/marccodess/brain-tumor-detection/internal/scanner"
	"github.com/marccodess/brain-tumor-detection/internal/storage"
)

func testSetup(t *testing.T) (*config.Config, *storage.Storage, int64) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DatasetDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2

	st, err := storage.New(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	runID, err := st.StartRun("split")
	if err != nil {
		t.Fatal(err)
	}

	return cfg, st, runID
}

func makeTask(t *testing.T, cfg *config.Config, category, name, split string) CopyTask {
	t.Helper()

	srcDir := filepath.Join(cfg.DatasetDir, category)
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(srcDir, name)
	if err := os.WriteFile(src, []byte(category+"/"+name), 0644); err != nil {
		t.Fatal(err)
	}

	dstDir := filepath.Join(cfg.OutputDir, split, category)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}

	return CopyTask{
		File: scanner.File{
			Path:     src,
			Category: category,
			RelPath:  category + "/" + name,
			Info: storage.FileInfo{
				Path:  src,
				Size:  info.Size(),
				Mtime: info.ModTime().Unix(),
			},
		},
		Split:   split,
		DstPath: filepath.Join(dstDir, name),
	}
}

func runTasks(ctx context.Context, cfg *config.Config, st *storage.Storage, runID int64, taskList []CopyTask) Stats {
	pool := New(cfg, st, runID)

	tasks := make(chan CopyTask, len(taskList))
	for _, task := range taskList {
		tasks <- task
	}
	close(tasks)

	return pool.Process(ctx, tasks)
}

func TestPool_Process(t *testing.T) {
	cfg, st, runID := testSetup(t)
	cfg.NoProgress = true

	taskList := []CopyTask{
		makeTask(t, cfg, "yes", "Y_1.png", "train"),
		makeTask(t, cfg, "yes", "Y_2.png", "test"),
		makeTask(t, cfg, "no", "N_1.png", "train"),
	}

	stats := runTasks(context.Background(), cfg, st, runID, taskList)

	if stats.Copied != 3 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 3 copied без ошибок", stats)
	}

	for _, task := range taskList {
		data, err := os.ReadFile(task.DstPath)
		if err != nil {
			t.Errorf("файл не скопирован: %s", task.DstPath)
			continue
		}
		if string(data) != task.File.RelPath {
			t.Errorf("содержимое %s = %q, want %q", task.DstPath, data, task.File.RelPath)
		}
	}
}

func TestPool_Process_Idempotent(t *testing.T) {
	cfg, st, runID := testSetup(t)
	cfg.NoProgress = true

	taskList := []CopyTask{makeTask(t, cfg, "yes", "Y_1.png", "train")}

	first := runTasks(context.Background(), cfg, st, runID, taskList)
	if first.Copied != 1 {
		t.Fatalf("первый запуск: %+v", first)
	}

	// Повторный запуск пропускает уже скопированный файл
	second := runTasks(context.Background(), cfg, st, runID, taskList)
	if second.Skipped != 1 || second.Copied != 0 {
		t.Errorf("второй запуск: %+v, want 1 skipped", second)
	}
}

func TestPool_Process_DryRun(t *testing.T) {
	cfg, st, runID := testSetup(t)
	cfg.NoProgress = true
	cfg.DryRun = true

	task := makeTask(t, cfg, "yes", "Y_1.png", "train")
	stats := runTasks(context.Background(), cfg, st, runID, []CopyTask{task})

	if stats.Copied != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := os.Stat(task.DstPath); !os.IsNotExist(err) {
		t.Error("в dry-run файл не должен копироваться")
	}

	// Dry-run не оставляет следов в журнале: реальный запуск копирует файл
	cfg.DryRun = false
	real := runTasks(context.Background(), cfg, st, runID, []CopyTask{task})
	if real.Copied != 1 || real.Skipped != 0 {
		t.Errorf("запуск после dry-run: %+v, want 1 copied", real)
	}
	if _, err := os.Stat(task.DstPath); err != nil {
		t.Error("файл не скопирован после dry-run")
	}
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	ml := NewMemoryLimiter(0)

	if ml.IsEnabled() {
		t.Error("лимит 0 должен отключать ограничение")
	}

	release, err := ml.Acquire(context.Background(), 1<<30)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
}

func TestMemoryLimiter_AcquireRelease(t *testing.T) {
	ml := NewMemoryLimiter(1024)

	release, err := ml.Acquire(context.Background(), 1<<20)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if ml.CurrentUsage() != 1<<20 {
		t.Errorf("CurrentUsage = %d, want %d", ml.CurrentUsage(), 1<<20)
	}

	release()

	if ml.CurrentUsage() != 0 {
		t.Errorf("после release CurrentUsage = %d, want 0", ml.CurrentUsage())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
