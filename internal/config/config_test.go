package config

import (
	"os"
	"testing"
)

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{"JWT_SECRET": "s"},
			check: func(t *testing.T, c *Config) {
				if c.Port != "8080" || c.StoreBackend != BackendPostgres || c.PregenerateCron != "" {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{
			name: "memory backend without database",
			env:  map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "memory", "DB_CONN": "", "PREGENERATE_CRON": "0 3 25 * *"},
			check: func(t *testing.T, c *Config) {
				if c.StoreBackend != BackendMemory || c.PregenerateCron != "0 3 25 * *" {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{name: "postgres without database", env: map[string]string{"JWT_SECRET": "s", "DB_CONN": ""}, wantErr: true},
		{name: "unknown backend", env: map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "redis"}, wantErr: true},
		{name: "no secret", env: map[string]string{"JWT_SECRET": ""}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"PORT", "DB_CONN", "STORE_BACKEND", "LOG_LEVEL", "JWT_SECRET", "CBR_URL", "PREGENERATE_CRON"} {
				v, ok := tt.env[k]
				t.Setenv(k, v)
				if !ok {
					os.Unsetenv(k)
				}
			}
			cfg, err := fromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
