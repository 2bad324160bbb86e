package storage

import (
	"path/filepath"
	"testing"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStartFinishRun(t *testing.T) {
	s := testStorage(t)

	runID, err := s.StartRun("pipeline")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if runID == 0 {
		t.Error("runID = 0")
	}

	if err := s.FinishRun(runID); err != nil {
		t.Errorf("FinishRun: %v", err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
}

func TestTryStartCopy_Idempotent(t *testing.T) {
	s := testStorage(t)

	runID, err := s.StartRun("split")
	if err != nil {
		t.Fatal(err)
	}

	info := FileInfo{
		Path:          "/data/yes/Y_1.png",
		Size:          100,
		ContentSHA256: "abc123",
	}
	dst := "/out/train/yes/Y_1.png"

	// Первая попытка начинает операцию
	result, err := s.TryStartCopy(runID, info, "yes", "train", dst)
	if err != nil {
		t.Fatalf("TryStartCopy: %v", err)
	}
	if !result.Started {
		t.Fatal("первая попытка должна начать операцию")
	}

	if err := s.FinalizeOpOK(result.OpID); err != nil {
		t.Fatalf("FinalizeOpOK: %v", err)
	}

	// Повторная попытка с тем же содержимым и назначением пропускается
	result2, err := s.TryStartCopy(runID, info, "yes", "train", dst)
	if err != nil {
		t.Fatalf("повторный TryStartCopy: %v", err)
	}
	if result2.Started {
		t.Error("повторная попытка не должна начинать операцию")
	}
	if result2.ExistingDstPath != dst {
		t.Errorf("ExistingDstPath = %q, want %q", result2.ExistingDstPath, dst)
	}
}

func TestTryStartCopy_RetryAfterFailed(t *testing.T) {
	s := testStorage(t)

	runID, err := s.StartRun("split")
	if err != nil {
		t.Fatal(err)
	}

	info := FileInfo{
		Path:          "/data/no/N_1.png",
		Size:          50,
		ContentSHA256: "def456",
	}
	dst := "/out/test/no/N_1.png"

	result, err := s.TryStartCopy(runID, info, "no", "test", dst)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.FinalizeOpFailed(result.OpID, "диск переполнен"); err != nil {
		t.Fatal(err)
	}

	// После failed операция начинается заново уже в новом запуске
	retryRunID, err := s.StartRun("split")
	if err != nil {
		t.Fatal(err)
	}

	result2, err := s.TryStartCopy(retryRunID, info, "no", "test", dst)
	if err != nil {
		t.Fatalf("TryStartCopy после failed: %v", err)
	}
	if !result2.Started {
		t.Fatal("после failed операция должна начаться заново")
	}

	// Повтор журналируется за текущим запуском, а не за запуском ошибки
	var gotRunID int64
	err = s.db.QueryRow("SELECT run_id FROM ops WHERE id = ?", result2.OpID).Scan(&gotRunID)
	if err != nil {
		t.Fatalf("чтение операции: %v", err)
	}
	if gotRunID != retryRunID {
		t.Errorf("run_id повтора = %d, want %d", gotRunID, retryRunID)
	}
}

func TestTryStartCopy_DifferentContentSameDst(t *testing.T) {
	// Разное содержимое с одним назначением не конфликтует по индексу
	s := testStorage(t)

	runID, err := s.StartRun("split")
	if err != nil {
		t.Fatal(err)
	}

	dst := "/out/train/yes/Y_1.png"

	a := FileInfo{Path: "/data/yes/a.png", ContentSHA256: "aaa"}
	b := FileInfo{Path: "/data/yes/b.png", ContentSHA256: "bbb"}

	resultA, err := s.TryStartCopy(runID, a, "yes", "train", dst)
	if err != nil || !resultA.Started {
		t.Fatalf("первая операция: started=%v err=%v", resultA != nil && resultA.Started, err)
	}
	resultB, err := s.TryStartCopy(runID, b, "yes", "train", dst)
	if err != nil || !resultB.Started {
		t.Fatalf("вторая операция: started=%v err=%v", resultB != nil && resultB.Started, err)
	}
}

func TestRecordDedupDeleteAndRename(t *testing.T) {
	s := testStorage(t)

	runID, err := s.StartRun("pipeline")
	if err != nil {
		t.Fatal(err)
	}

	err = s.RecordDedupDelete(runID, "/data/no/b.png", "/data/yes/a.png", "no", "fp123")
	if err != nil {
		t.Fatalf("RecordDedupDelete: %v", err)
	}

	err = s.RecordRename(runID, "/out/train/yes/scan.png", "/out/train/yes/Y_1.png", "yes")
	if err != nil {
		t.Fatalf("RecordRename: %v", err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.DedupDeleted != 1 {
		t.Errorf("DedupDeleted = %d, want 1", stats.DedupDeleted)
	}
	if stats.Renamed != 1 {
		t.Errorf("Renamed = %d, want 1", stats.Renamed)
	}
}

func TestCleanupInProgress(t *testing.T) {
	s := testStorage(t)

	runID, err := s.StartRun("split")
	if err != nil {
		t.Fatal(err)
	}

	info := FileInfo{Path: "/data/yes/a.png", ContentSHA256: "zzz"}
	result, err := s.TryStartCopy(runID, info, "yes", "train", "/out/train/yes/a.png")
	if err != nil || !result.Started {
		t.Fatal("не удалось начать операцию")
	}

	// Операция осталась in_progress - имитация аварийного завершения
	cleaned, err := s.CleanupInProgress()
	if err != nil {
		t.Fatalf("CleanupInProgress: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("очищено %d операций, want 1", cleaned)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
}
