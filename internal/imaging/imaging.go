// Package imaging содержит декодирование изображений и вычисление отпечатков.
package imaging

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"os"

	// Регистрируем декодеры стандартной библиотеки.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Регистрируем декодеры из golang.org/x/image.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode открывает файл и декодирует его как изображение.
// Формат определяется по содержимому через зарегистрированные декодеры.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть изображение %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("не удалось декодировать изображение %s: %w", path, err)
	}

	return img, nil
}

// Fingerprint вычисляет отпечаток по декодированным пикселям.
//
// Схема отпечатка фиксирована: sha256 от конкатенации
// uint32be(ширина) || uint32be(высота) || пиксели NRGBA построчно.
// Изображение всегда приводится к NRGBA, поэтому разные кодировки
// одних и тех же пикселей (например PNG и BMP) дают одинаковый отпечаток.
func Fingerprint(img image.Image) string {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Приводим к NRGBA с нулевой точкой отсчёта, чтобы Pix был
	// непрерывным буфером w*4 байт на строку.
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(w))
	binary.BigEndian.PutUint32(dims[4:8], uint32(h))

	hash := sha256.New()
	hash.Write(dims[:])
	hash.Write(nrgba.Pix)

	return hex.EncodeToString(hash.Sum(nil))
}

// FingerprintFile декодирует файл и возвращает отпечаток его пикселей.
func FingerprintFile(path string) (string, error) {
	img, err := Decode(path)
	if err != nil {
		return "", err
	}
	return Fingerprint(img), nil
}

// EstimateDecodedSize оценивает объём памяти для декодирования файла.
// Точный размер неизвестен до декодирования, поэтому берём консервативную
// оценку: сжатые форматы раскрываются примерно в 6 раз плюс буфер NRGBA.
func EstimateDecodedSize(fileSize int64) uint64 {
	const expansionFactor = 6
	return uint64(fileSize) * expansionFactor
}
