// Package storage содержит миграции SQLite базы данных.
package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: Таблица запусков
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);`,

	// Миграция 2: Таблица операций над файлами
	`CREATE TABLE IF NOT EXISTS ops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		src_path TEXT NOT NULL,
		dst_path TEXT,
		category TEXT NOT NULL,
		split TEXT,
		content_sha256 TEXT,
		fingerprint TEXT,
		status TEXT NOT NULL,
		error TEXT
	);`,

	// Миграция 3: Уникальный индекс для идемпотентности копирования.
	// Гарантирует, что файл с одним и тем же содержимым не будет
	// скопирован в одно и то же место дважды.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_ops_copy
	ON ops (content_sha256, dst_path)
	WHERE type = 'copy' AND content_sha256 IS NOT NULL;`,

	// Миграция 4: Индекс для быстрого поиска по статусу и типу
	`CREATE INDEX IF NOT EXISTS ix_ops_status ON ops (status);`,
	`CREATE INDEX IF NOT EXISTS ix_ops_type ON ops (type);`,

	// Миграция 5: Таблица метаданных для версионирования схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,

	// Миграция 6: Запись версии схемы
	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}

// GetMigrations возвращает список SQL-миграций.
func GetMigrations() []string {
	return migrations
}

/*
Возможные расширения:
- Добавить поддержку отката миграций (down migrations)
- Добавить таблицу для сводной статистики по запускам
*/
