// Package storage содержит модели и логику работы с SQLite базой данных.
package storage

// OpType определяет тип операции над файлом датасета.
type OpType string

const (
	// OpDedupDelete - удаление дубликата при дедупликации.
	OpDedupDelete OpType = "dedup_delete"
	// OpCopy - копирование файла в раскладку train/test/val.
	OpCopy OpType = "copy"
	// OpRename - нормализация имени файла.
	OpRename OpType = "rename"
)

// OpStatus определяет статус операции.
type OpStatus string

const (
	// StatusInProgress - операция выполняется.
	StatusInProgress OpStatus = "in_progress"
	// StatusOK - операция успешно завершена.
	StatusOK OpStatus = "ok"
	// StatusFailed - операция завершилась с ошибкой.
	StatusFailed OpStatus = "failed"
)

// Run представляет один запуск подготовки датасета.
type Run struct {
	// ID - уникальный идентификатор запуска.
	ID int64 `db:"id"`

	// Command - команда запуска (pipeline, dedup, split, rename).
	Command string `db:"command"`

	// StartedAt - время начала (unix timestamp).
	StartedAt int64 `db:"started_at"`

	// FinishedAt - время завершения (unix timestamp, nullable).
	FinishedAt *int64 `db:"finished_at"`
}

// Op представляет операцию над файлом датасета.
type Op struct {
	// ID - уникальный идентификатор операции.
	ID int64 `db:"id"`

	// RunID - идентификатор запуска.
	RunID int64 `db:"run_id"`

	// Type - тип операции.
	Type OpType `db:"type"`

	// SrcPath - абсолютный путь к исходному файлу.
	SrcPath string `db:"src_path"`

	// DstPath - путь назначения (для copy/rename, nullable).
	DstPath *string `db:"dst_path"`

	// Category - категория файла.
	Category string `db:"category"`

	// Split - выборка (train/test/val) для операций copy.
	Split *string `db:"split"`

	// ContentSHA256 - sha256 хэш байтов файла (для идемпотентности copy).
	ContentSHA256 *string `db:"content_sha256"`

	// Fingerprint - отпечаток декодированных пикселей (для dedup_delete).
	Fingerprint *string `db:"fingerprint"`

	// Status - статус операции.
	Status OpStatus `db:"status"`

	// Error - сообщение об ошибке (если есть).
	Error *string `db:"error"`
}

// FileInfo содержит информацию о файле для проверки.
type FileInfo struct {
	// Path - абсолютный путь к файлу.
	Path string

	// Size - размер файла в байтах.
	Size int64

	// Mtime - время модификации (unix timestamp).
	Mtime int64

	// ContentSHA256 - sha256 хэш содержимого (опционально).
	ContentSHA256 string
}

// StartCopyResult содержит результат попытки начать копирование.
type StartCopyResult struct {
	// Started - была ли операция начата.
	Started bool

	// OpID - ID операции (если начата).
	OpID int64

	// SkipReason - причина пропуска (если не начата).
	SkipReason string

	// ExistingDstPath - путь к уже скопированному файлу.
	ExistingDstPath string
}

// Stats содержит агрегированную статистику журнала операций.
type Stats struct {
	// Runs - количество запусков.
	Runs int64

	// DedupDeleted - удалено дубликатов.
	DedupDeleted int64

	// Copied - скопировано файлов.
	Copied int64

	// Renamed - переименовано файлов.
	Renamed int64

	// Failed - операций с ошибками.
	Failed int64
}

/*
Возможные расширения:
- Добавить поле для размера файла (для статистики объёма)
- Добавить таблицу для хранения отпечатков по запускам
*/
