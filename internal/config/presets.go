// Package config содержит конфигурацию приложения.
package config

import "fmt"

// SplitPreset определяет именованный профиль разбиения датасета.
type SplitPreset string

const (
	// PresetStandard - классическое разбиение 70/15/15.
	PresetStandard SplitPreset = "standard"
	// PresetHoldout - разбиение 80/20 без валидационной выборки.
	PresetHoldout SplitPreset = "holdout"
	// PresetResearch - разбиение 60/20/20 с увеличенными test и val.
	PresetResearch SplitPreset = "research"
)

// SplitRatios содержит доли выборок для пресета.
type SplitRatios struct {
	// Train - доля обучающей выборки.
	Train float64
	// Test - доля тестовой выборки.
	Test float64
	// Val - доля валидационной выборки.
	Val float64
}

// SplitPresets содержит все доступные пресеты разбиения.
var SplitPresets = map[SplitPreset]SplitRatios{
	PresetStandard: {Train: 0.70, Test: 0.15, Val: 0.15},
	PresetHoldout:  {Train: 0.80, Test: 0.20, Val: 0},
	PresetResearch: {Train: 0.60, Test: 0.20, Val: 0.20},
}

// ApplySplitPreset применяет пресет разбиения к конфигурации.
// Возвращает ошибку, если пресет неизвестен.
func (c *Config) ApplySplitPreset(name string) error {
	ratios, ok := SplitPresets[SplitPreset(name)]
	if !ok {
		return fmt.Errorf("неизвестный пресет разбиения: %s (доступны: standard, holdout, research)", name)
	}

	c.SplitPreset = name
	c.TrainRatio = ratios.Train
	c.TestRatio = ratios.Test
	c.ValRatio = ratios.Val

	return nil
}

// SplitPresetNames возвращает имена всех доступных пресетов.
func SplitPresetNames() []string {
	return []string{string(PresetStandard), string(PresetHoldout), string(PresetResearch)}
}
