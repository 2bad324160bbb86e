package cache

import (
	"testing"

	"github.com/marccodess/brain-tumor-detection/internal/config"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CacheEnabled = true
	cfg.CacheDir = t.TempDir()

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := testCache(t)

	key := c.Key("/data/yes/a.png", 1024, 1700000000)
	if _, ok := c.Get(key); ok {
		t.Error("Get вернул запись для пустого кэша")
	}

	if err := c.Put(key, "abc123"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	digest, ok := c.Get(key)
	if !ok || digest != "abc123" {
		t.Errorf("Get = (%q, %v), want (abc123, true)", digest, ok)
	}
}

func TestCache_KeyDependsOnMetadata(t *testing.T) {
	c := testCache(t)

	base := c.Key("/data/yes/a.png", 1024, 1700000000)
	if c.Key("/data/yes/b.png", 1024, 1700000000) == base {
		t.Error("ключ не зависит от пути")
	}
	if c.Key("/data/yes/a.png", 2048, 1700000000) == base {
		t.Error("ключ не зависит от размера")
	}
	if c.Key("/data/yes/a.png", 1024, 1700000001) == base {
		t.Error("ключ не зависит от mtime")
	}
}

func TestCache_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheEnabled = false

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.IsEnabled() {
		t.Error("кэш должен быть выключен")
	}

	key := c.Key("/a", 1, 1)
	if err := c.Put(key, "x"); err != nil {
		t.Errorf("Put на выключенном кэше вернул ошибку: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("Get на выключенном кэше вернул запись")
	}
}

func TestCache_Clear(t *testing.T) {
	c := testCache(t)

	key := c.Key("/a", 1, 1)
	if err := c.Put(key, "digest"); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("запись осталась после Clear")
	}
}
