package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_NotExist(t *testing.T) {
	fc, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if fc != nil {
		t.Error("для отсутствующего файла ожидается nil")
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("dataset: [broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("ожидалась ошибка парсинга YAML")
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mriprep.yaml")

	cfg := DefaultConfig()
	cfg.DatasetDir = "./dataset"
	cfg.OutputDir = "./prepared"
	cfg.Seed = 7
	if err := cfg.ApplySplitPreset("holdout"); err != nil {
		t.Fatal(err)
	}

	if err := FromConfig(cfg).SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	fc, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if fc == nil {
		t.Fatal("файл не загружен")
	}

	loaded := DefaultConfig()
	if err := fc.ApplyToConfig(loaded); err != nil {
		t.Fatalf("ApplyToConfig: %v", err)
	}

	if loaded.DatasetDir != "./dataset" || loaded.OutputDir != "./prepared" {
		t.Errorf("пути = %q, %q", loaded.DatasetDir, loaded.OutputDir)
	}
	if loaded.Seed != 7 {
		t.Errorf("Seed = %d, want 7", loaded.Seed)
	}
	// Пресет из файла применён
	if loaded.TrainRatio != 0.80 || loaded.TestRatio != 0.20 {
		t.Errorf("доли = %g/%g, want 0.80/0.20", loaded.TrainRatio, loaded.TestRatio)
	}
}

func TestApplyToConfig_ExplicitRatiosOverridePreset(t *testing.T) {
	val := 0.25
	fc := &FileConfig{
		Split: &SplitConfig{
			Preset: "standard",
			Train:  0.50,
			Test:   0.25,
			Val:    &val,
		},
	}

	cfg := DefaultConfig()
	if err := fc.ApplyToConfig(cfg); err != nil {
		t.Fatalf("ApplyToConfig: %v", err)
	}

	if cfg.TrainRatio != 0.50 || cfg.TestRatio != 0.25 || cfg.ValRatio != 0.25 {
		t.Errorf("доли = %g/%g/%g, явные значения должны перекрывать пресет",
			cfg.TrainRatio, cfg.TestRatio, cfg.ValRatio)
	}
}

func TestApplyToConfig_UnknownPreset(t *testing.T) {
	fc := &FileConfig{
		Split: &SplitConfig{Preset: "nope"},
	}

	if err := fc.ApplyToConfig(DefaultConfig()); err == nil {
		t.Error("ожидалась ошибка для неизвестного пресета")
	}
}

func TestApplyToConfig_Nil(t *testing.T) {
	var fc *FileConfig
	cfg := DefaultConfig()

	if err := fc.ApplyToConfig(cfg); err != nil {
		t.Errorf("nil FileConfig не должен менять конфигурацию: %v", err)
	}
}
