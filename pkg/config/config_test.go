package config

import (
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				App:    AppConfig{Name: "test-service"},
				HTTP:   HTTPConfig{Port: 8080},
				Log:    LogConfig{Level: "info"},
				Graph:  GraphConfig{MaxTraversalDepth: 10},
				Buffer: BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: false,
		},
		{
			name: "missing app name",
			cfg: Config{
				HTTP:     HTTPConfig{Port: 8080},
				Log:      LogConfig{Level: "info"},
				Graph:    GraphConfig{MaxTraversalDepth: 10},
				Buffer:   BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
		{
			name: "invalid port - zero",
			cfg: Config{
				App:      AppConfig{Name: "test"},
				HTTP:     HTTPConfig{Port: 0},
				Graph:    GraphConfig{MaxTraversalDepth: 10},
				Buffer:   BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
		{
			name: "invalid port - too high",
			cfg: Config{
				App:      AppConfig{Name: "test"},
				HTTP:     HTTPConfig{Port: 70000},
				Graph:    GraphConfig{MaxTraversalDepth: 10},
				Buffer:   BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: Config{
				App:      AppConfig{Name: "test"},
				HTTP:     HTTPConfig{Port: 8080},
				Log:      LogConfig{Level: "invalid"},
				Graph:    GraphConfig{MaxTraversalDepth: 10},
				Buffer:   BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
		{
			name: "negative buffer multiplier",
			cfg: Config{
				App:      AppConfig{Name: "test"},
				HTTP:     HTTPConfig{Port: 8080},
				Log:      LogConfig{Level: "info"},
				Graph:    GraphConfig{MaxTraversalDepth: 10},
				Buffer:   BufferConfig{PessimisticMultiplier: -1, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
		{
			name: "default availability out of range",
			cfg: Config{
				App:      AppConfig{Name: "test"},
				HTTP:     HTTPConfig{Port: 8080},
				Log:      LogConfig{Level: "info"},
				Graph:    GraphConfig{MaxTraversalDepth: 10},
				Buffer:   BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 1.5},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
		{
			name: "zero traversal depth",
			cfg: Config{
				App:      AppConfig{Name: "test"},
				HTTP:     HTTPConfig{Port: 8080},
				Log:      LogConfig{Level: "info"},
				Graph:    GraphConfig{MaxTraversalDepth: 0},
				Buffer:   BufferConfig{PessimisticMultiplier: 10, DefaultAvailability: 0.999},
				Analysis: AnalysisConfig{DefaultTargetPct: 99.9},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    DatabaseConfig
		expect string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
				SSLMode:  "disable",
			},
			expect: "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable",
		},
		{
			name: "mysql",
			cfg: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expect: "user:pass@tcp(localhost:3306)/testdb?parseTime=true",
		},
		{
			name: "sqlite",
			cfg: DatabaseConfig{
				Driver:   "sqlite",
				Database: "/path/to/db.sqlite",
			},
			expect: "/path/to/db.sqlite",
		},
		{
			name: "unknown",
			cfg: DatabaseConfig{
				Driver: "unknown",
			},
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.DSN()
			if dsn != tt.expect {
				t.Errorf("expected DSN %s, got %s", tt.expect, dsn)
			}
		})
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"http://localhost:3000", "https://example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	if !cfg.Enabled {
		t.Error("expected CORS to be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %d", len(cfg.AllowedOrigins))
	}
}

func TestSLOTierDefaults(t *testing.T) {
	cfg := LifecycleConfig{
		Tiers: map[string]SLOTierDefaults{
			"balanced": {TargetPct: 99.9, ErrorBudgetMinutes: 200, FastBurnThreshold: 800},
		},
	}

	tier, ok := cfg.Tiers["balanced"]
	if !ok {
		t.Fatal("expected a balanced tier entry")
	}
	if tier.TargetPct != 99.9 {
		t.Errorf("expected target_pct 99.9, got %f", tier.TargetPct)
	}
	if tier.ErrorBudgetMinutes != 200 {
		t.Errorf("expected error_budget_minutes 200, got %d", tier.ErrorBudgetMinutes)
	}
}
