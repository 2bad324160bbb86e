// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Profile представляет именованный сохранённый профиль конфигурации.
type Profile struct {
	// Name - имя профиля.
	Name string
	// Path - путь к файлу профиля.
	Path string
	// Config - конфигурация профиля.
	Config *FileConfig
}

// GetProfilesDir возвращает директорию для хранения профилей.
func GetProfilesDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("не удалось получить домашнюю директорию: %w", err)
	}

	return filepath.Join(homeDir, ".config", "mriprep", "profiles"), nil
}

// EnsureProfilesDir создаёт директорию для профилей если она не существует.
func EnsureProfilesDir() (string, error) {
	profilesDir, err := GetProfilesDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(profilesDir, 0755); err != nil {
		return "", fmt.Errorf("не удалось создать директорию профилей: %w", err)
	}

	return profilesDir, nil
}

// GetProfilePath возвращает путь к файлу профиля по имени.
func GetProfilePath(name string) (string, error) {
	profilesDir, err := GetProfilesDir()
	if err != nil {
		return "", err
	}

	// Очищаем имя от небезопасных символов
	safeName := sanitizeProfileName(name)
	if safeName == "" {
		return "", fmt.Errorf("некорректное имя профиля: %s", name)
	}

	return filepath.Join(profilesDir, safeName+".yaml"), nil
}

// sanitizeProfileName очищает имя профиля от небезопасных символов.
func sanitizeProfileName(name string) string {
	// Разрешаем только буквы, цифры, дефисы и подчёркивания
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SaveProfile сохраняет конфигурацию как именованный профиль.
func SaveProfile(name string, cfg *Config) (string, error) {
	if _, err := EnsureProfilesDir(); err != nil {
		return "", err
	}

	profilePath, err := GetProfilePath(name)
	if err != nil {
		return "", err
	}

	fc := FromConfig(cfg)
	if err := fc.SaveToFile(profilePath); err != nil {
		return "", fmt.Errorf("не удалось сохранить профиль: %w", err)
	}

	return profilePath, nil
}

// LoadProfile загружает конфигурацию из именованного профиля.
func LoadProfile(name string) (*FileConfig, string, error) {
	profilePath, err := GetProfilePath(name)
	if err != nil {
		return nil, "", err
	}

	fc, err := LoadFromFile(profilePath)
	if err != nil {
		return nil, "", fmt.Errorf("не удалось загрузить профиль '%s': %w", name, err)
	}
	if fc == nil {
		return nil, "", fmt.Errorf("профиль '%s' не найден", name)
	}

	return fc, profilePath, nil
}

// ListProfiles возвращает список всех сохранённых профилей.
func ListProfiles() ([]Profile, error) {
	profilesDir, err := GetProfilesDir()
	if err != nil {
		return nil, err
	}

	// Проверяем существование директории
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		return []Profile{}, nil
	}

	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать директорию профилей: %w", err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		profileName := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		profilePath := filepath.Join(profilesDir, name)

		// Пробуем загрузить конфиг для проверки валидности
		fc, _ := LoadFromFile(profilePath)

		profiles = append(profiles, Profile{
			Name:   profileName,
			Path:   profilePath,
			Config: fc,
		})
	}

	// Сортируем по имени
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})

	return profiles, nil
}

// DeleteProfile удаляет именованный профиль.
func DeleteProfile(name string) error {
	profilePath, err := GetProfilePath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(profilePath); os.IsNotExist(err) {
		return fmt.Errorf("профиль '%s' не найден", name)
	}

	if err := os.Remove(profilePath); err != nil {
		return fmt.Errorf("не удалось удалить профиль: %w", err)
	}

	return nil
}

// ProfileExists проверяет существование профиля.
func ProfileExists(name string) bool {
	profilePath, err := GetProfilePath(name)
	if err != nil {
		return false
	}

	_, err = os.Stat(profilePath)
	return err == nil
}

/*
Возможные расширения:
- Добавить описание к профилям
- Добавить импорт/экспорт профилей
- Добавить наследование профилей (extends)
*/
