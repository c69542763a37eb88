package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"studyfocus/internal/config"
	"studyfocus/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:   "mongo",
		MongoURI:      "mongodb://db:27017",
		MongoDatabase: "studyfocus",
		SQLiteDBPath:  "x.db",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != MongoBackend || bc.MongoURI != cfg.MongoURI || bc.MongoDatabase != "studyfocus" {
		t.Errorf("unexpected backend config: %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"mongo ok", Config{Type: MongoBackend, MongoURI: "mongodb://x", MongoDatabase: "d"}, false},
		{"mongo missing uri", Config{Type: MongoBackend, MongoDatabase: "d"}, true},
		{"mongo missing db", Config{Type: MongoBackend, MongoURI: "mongodb://x"}, true},
		{"sqlite missing path", Config{Type: SQLiteBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(testLogger())
	ctx := context.Background()

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if err := res.Backend.Ping(ctx); err != nil {
		t.Errorf("memory ping: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "sub", "test.db")
	res, err = f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: dbPath})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if res.Cleanup == nil {
		t.Fatal("sqlite backend should have a cleanup func")
	}
	defer res.Cleanup()
	n, err := res.Backend.CountTasks(ctx, "a@x.com")
	if err != nil || n != 0 {
		t.Errorf("CountTasks = %d, %v", n, err)
	}

	if _, err := f.CreateBackend(ctx, Config{Type: "nope"}); err == nil {
		t.Error("expected error for invalid backend type")
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	want := []string{"mongo", "sqlite", "memory"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
