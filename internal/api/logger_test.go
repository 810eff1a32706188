package api

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type recordingLogger struct {
	mu     sync.Mutex
	levels []string
}

func (l *recordingLogger) record(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
}

func (l *recordingLogger) Info(msg string, fields ...interface{}) { l.record("info") }
func (l *recordingLogger) Warn(msg string, fields ...interface{}) { l.record("warn") }
func (l *recordingLogger) Error(msg string, fields ...interface{}) { l.record("error") }
func (l *recordingLogger) Debug(msg string, fields ...interface{}) { l.record("debug") }
func (l *recordingLogger) Fatal(msg string, fields ...interface{}) { l.record("fatal") }

func TestRequestLoggerLevels(t *testing.T) {
	log := &recordingLogger{}

	app := fiber.New()
	app.Use(NewLogger(log))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/broken", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/broken"} {
		if _, err := app.Test(httptest.NewRequest("GET", path, nil), -1); err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	want := []string{"info", "warn", "error"}
	if len(log.levels) != len(want) {
		t.Fatalf("Expected %v, got %v", want, log.levels)
	}
	for i := range want {
		if log.levels[i] != want[i] {
			t.Errorf("Request %d: expected %s, got %s", i, want[i], log.levels[i])
		}
	}
}
