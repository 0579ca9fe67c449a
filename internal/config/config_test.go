package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8090},
		Database: DatabaseConfig{
			Driver: "redis",
			Addrs:  []string{"localhost:6379"},
		},
		Encoder: EncoderConfig{
			BaseURL: "http://localhost:8080/v1",
		},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_SocketSkipsPortCheck(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	cfg.HTTP.Socket = "/tmp/listingsearch.sock"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "chroma"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}

	expected := `database.driver must be "bolt" or "redis", got "chroma"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_MissingBoltPath(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "bolt"
	cfg.Database.Path = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing bolt path")
	}
}

func TestValidate_MissingEncoderBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Encoder.BaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing encoder base URL")
	}
}

func TestValidate_NegativeCacheTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Encoder.CacheTTLSec = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative cache TTL")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "bolt" {
		t.Errorf("expected driver=bolt, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != "data/listingsearch.db" {
		t.Errorf("expected default bolt path, got %q", cfg.Database.Path)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Encoder.Model != "all-MiniLM-L6-v2" {
		t.Errorf("expected default model, got %q", cfg.Encoder.Model)
	}
	if cfg.Encoder.Dimensions != 384 {
		t.Errorf("expected Dimensions=384, got %d", cfg.Encoder.Dimensions)
	}
	if cfg.Index.Name != "search:listings:idx" {
		t.Errorf("expected default index name, got %q", cfg.Index.Name)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
	if cfg.Index.HNSWEFConstruct != 400 {
		t.Errorf("expected HNSWEFConstruct=400, got %d", cfg.Index.HNSWEFConstruct)
	}
	if cfg.Storage.KeyPrefix != "search:" {
		t.Errorf("expected KeyPrefix='search:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Encoder:  EncoderConfig{Model: "bge-small-en", Dimensions: 512},
		Index:    IndexConfig{Name: "custom-idx", HNSWM: 16, HNSWEFConstruct: 200},
		Storage:  StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != "" {
		t.Errorf("redis driver should not get a bolt path, got %q", cfg.Database.Path)
	}
	if cfg.Encoder.Model != "bge-small-en" {
		t.Errorf("expected Model=bge-small-en, got %q", cfg.Encoder.Model)
	}
	if cfg.Index.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Index.HNSWM)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LS_TEST_TOKEN", "sekret")

	data := expandEnvVars([]byte("token: ${LS_TEST_TOKEN}\nmodel: ${LS_TEST_MODEL:-fallback}\n"))
	want := "token: sekret\nmodel: fallback\n"
	if string(data) != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", string(data), want)
	}
}
