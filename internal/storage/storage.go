// Package storage содержит логику работы с SQLite базой данных.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage предоставляет методы для работы с журналом операций.
type Storage struct {
	db *sql.DB
}

// New создаёт новое подключение к SQLite и выполняет миграции.
func New(dbPath string) (*Storage, error) {
	// Создаём директорию для БД, если не существует
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
	}

	// Открываем/создаём БД с параметрами для concurrent доступа
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}

	// Проверяем подключение
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	// SQLite не поддерживает concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Storage{db: db}

	// Выполняем миграции
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось выполнить миграции: %w", err)
	}

	return s, nil
}

// migrate выполняет все SQL-миграции.
func (s *Storage) migrate() error {
	for i, m := range GetMigrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartRun регистрирует новый запуск и возвращает его ID.
func (s *Storage) StartRun(command string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO runs (command, started_at) VALUES (?, ?)",
		command, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось зарегистрировать запуск: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun помечает запуск как завершённый.
func (s *Storage) FinishRun(runID int64) error {
	_, err := s.db.Exec(
		"UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("не удалось завершить запуск: %w", err)
	}
	return nil
}

// TryStartCopy пытается начать копирование файла в раскладку.
// Возвращает StartCopyResult с информацией о том, была ли операция начата.
func (s *Storage) TryStartCopy(runID int64, info FileInfo, category, split, dstPath string) (*StartCopyResult, error) {
	query := `
		INSERT INTO ops (run_id, type, src_path, dst_path, category, split, content_sha256, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var contentSHA256 *string
	if info.ContentSHA256 != "" {
		contentSHA256 = &info.ContentSHA256
	}

	result, err := s.db.Exec(query,
		runID, OpCopy, info.Path, dstPath, category, split, contentSHA256, StatusInProgress,
	)

	if err != nil {
		// Проверяем, не конфликт ли уникального индекса
		if isUniqueConstraintError(err) {
			// Файл с таким содержимым уже копировался в это место
			return s.checkExistingCopy(runID, info, dstPath)
		}
		return nil, fmt.Errorf("не удалось создать операцию: %w", err)
	}

	opID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить ID операции: %w", err)
	}

	return &StartCopyResult{
		Started: true,
		OpID:    opID,
	}, nil
}

// checkExistingCopy проверяет существующую операцию копирования
// и возвращает причину пропуска. Повтор после failed журналируется
// за runID текущего запуска, а не запуска исходной ошибки.
func (s *Storage) checkExistingCopy(runID int64, info FileInfo, dstPath string) (*StartCopyResult, error) {
	var op Op
	query := `
		SELECT id, status, dst_path, category, split FROM ops
		WHERE type = ? AND content_sha256 = ? AND dst_path = ?
		LIMIT 1
	`
	err := s.db.QueryRow(query, OpCopy, info.ContentSHA256, dstPath).
		Scan(&op.ID, &op.Status, &op.DstPath, &op.Category, &op.Split)

	if err == nil {
		switch op.Status {
		case StatusOK:
			existing := ""
			if op.DstPath != nil {
				existing = *op.DstPath
			}
			return &StartCopyResult{
				Started:         false,
				SkipReason:      "уже скопирован",
				ExistingDstPath: existing,
			}, nil
		case StatusInProgress:
			return &StartCopyResult{
				Started:    false,
				SkipReason: "уже копируется",
			}, nil
		case StatusFailed:
			// Если failed - пробуем повторить, удаляя старую запись
			if _, err := s.db.Exec("DELETE FROM ops WHERE id = ?", op.ID); err != nil {
				return nil, fmt.Errorf("не удалось удалить failed операцию: %w", err)
			}
			return s.TryStartCopy(runID, info, op.Category, stringOrEmpty(op.Split), dstPath)
		}
	}

	return &StartCopyResult{
		Started:    false,
		SkipReason: "неизвестная причина",
	}, nil
}

// CancelOp удаляет запись операции из журнала.
// Используется в dry-run: запланированное копирование не должно
// помечать файл как скопированный для последующих реальных запусков.
func (s *Storage) CancelOp(opID int64) error {
	_, err := s.db.Exec("DELETE FROM ops WHERE id = ?", opID)
	if err != nil {
		return fmt.Errorf("не удалось удалить операцию: %w", err)
	}
	return nil
}

// FinalizeOpOK помечает операцию как успешно завершённую.
func (s *Storage) FinalizeOpOK(opID int64) error {
	_, err := s.db.Exec("UPDATE ops SET status = ? WHERE id = ?", StatusOK, opID)
	if err != nil {
		return fmt.Errorf("не удалось обновить статус операции: %w", err)
	}
	return nil
}

// FinalizeOpFailed помечает операцию как завершённую с ошибкой.
func (s *Storage) FinalizeOpFailed(opID int64, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE ops SET status = ?, error = ? WHERE id = ?",
		StatusFailed, errMsg, opID,
	)
	if err != nil {
		return fmt.Errorf("не удалось обновить статус операции: %w", err)
	}
	return nil
}

// RecordDedupDelete регистрирует удаление дубликата.
// canonicalPath - путь к первому встреченному файлу с тем же отпечатком.
func (s *Storage) RecordDedupDelete(runID int64, path, canonicalPath, category, fingerprint string) error {
	_, err := s.db.Exec(`
		INSERT INTO ops (run_id, type, src_path, dst_path, category, fingerprint, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, OpDedupDelete, path, canonicalPath, category, fingerprint, StatusOK,
	)
	if err != nil {
		return fmt.Errorf("не удалось записать удаление дубликата: %w", err)
	}
	return nil
}

// RecordRename регистрирует нормализацию имени файла.
func (s *Storage) RecordRename(runID int64, srcPath, dstPath, category string) error {
	_, err := s.db.Exec(`
		INSERT INTO ops (run_id, type, src_path, dst_path, category, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, OpRename, srcPath, dstPath, category, StatusOK,
	)
	if err != nil {
		return fmt.Errorf("не удалось записать переименование: %w", err)
	}
	return nil
}

// GetStats возвращает агрегированную статистику журнала.
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("не удалось получить статистику: %w", err)
	}

	countOps := func(dst *int64, query string, args ...interface{}) {
		_ = s.db.QueryRow(query, args...).Scan(dst)
	}

	countOps(&stats.DedupDeleted, "SELECT COUNT(*) FROM ops WHERE type = ? AND status = ?", OpDedupDelete, StatusOK)
	countOps(&stats.Copied, "SELECT COUNT(*) FROM ops WHERE type = ? AND status = ?", OpCopy, StatusOK)
	countOps(&stats.Renamed, "SELECT COUNT(*) FROM ops WHERE type = ? AND status = ?", OpRename, StatusOK)
	countOps(&stats.Failed, "SELECT COUNT(*) FROM ops WHERE status = ?", StatusFailed)

	return stats, nil
}

// CleanupInProgress сбрасывает операции со статусом in_progress в failed.
// Вызывается при старте для очистки после аварийного завершения.
func (s *Storage) CleanupInProgress() (int64, error) {
	result, err := s.db.Exec(
		"UPDATE ops SET status = ?, error = ? WHERE status = ?",
		StatusFailed, "прервано при предыдущем запуске", StatusInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось очистить in_progress: %w", err)
	}
	return result.RowsAffected()
}

// stringOrEmpty возвращает значение указателя или пустую строку.
func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueConstraintError проверяет, является ли ошибка нарушением уникальности.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite возвращает "UNIQUE constraint failed" при конфликте
	return !errors.Is(err, sql.ErrNoRows) &&
		(strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "constraint failed"))
}

/*
Возможные расширения:
- Добавить метод для экспорта журнала в JSON
- Добавить метод для очистки старых запусков
- Добавить поддержку транзакций для batch-операций
*/
