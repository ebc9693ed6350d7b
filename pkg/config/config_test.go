package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-futurism/pkg/config"
	"github.com/goliatone/go-futurism/pkg/signer"
)

func TestParse_YAMLAndJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want config.Config
	}{
		{
			name: "yaml",
			data: "app: dummy\nsecret_key_base: s3cret\n",
			want: config.Config{App: "dummy", SecretKeyBase: "s3cret", Salt: signer.DefaultSalt, Iterations: signer.DefaultIterations},
		},
		{
			name: "json",
			data: `{"secret_key_base":"s3cret","salt":"custom","iterations":10}`,
			want: config.Config{App: config.DefaultApp, SecretKeyBase: "s3cret", Salt: "custom", Iterations: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.Parse([]byte(tt.data), tt.name)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := config.Parse([]byte("  \n"), "empty.yaml"); err == nil {
		t.Fatalf("expected empty file error")
	}
	if _, err := config.Parse([]byte("app: [unterminated"), "bad.yaml"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		config.EnvSecretKeyBase: "from-env",
		config.EnvApp:           "dummy",
		config.EnvIterations:    "5",
	}
	cfg := config.Default()
	if err := cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	want := config.Config{App: "dummy", SecretKeyBase: "from-env", Salt: signer.DefaultSalt, Iterations: 5}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	bad := config.Default()
	err := bad.ApplyEnv(func(key string) (string, bool) {
		if key == config.EnvIterations {
			return "many", true
		}
		return "", false
	})
	if err == nil {
		t.Fatalf("expected invalid iterations error")
	}
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "futurism.yaml")
	if err := os.WriteFile(path, []byte("app: dummy\nsecret_key_base: from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(config.EnvSecretKeyBase, "from-env")
	t.Setenv(config.EnvApp, "")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App != "dummy" || cfg.SecretKeyBase != "from-env" {
		t.Fatalf("unexpected config %+v", cfg.Redacted())
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv(config.EnvSecretKeyBase, "")

	_, err := config.Load("")
	if !errors.Is(err, config.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{"futurism.yml": {Data: []byte("secret_key_base: s3cret\napp: dummy\n")}}

	cfg, err := config.LoadFS(fsys, "futurism.yml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App != "dummy" {
		t.Fatalf("unexpected app %q", cfg.App)
	}
	if _, err := config.LoadFS(fsys, "missing.yml"); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "app with slash", cfg: config.Config{App: "a/b", SecretKeyBase: "s", Iterations: 1}},
		{name: "empty app", cfg: config.Config{SecretKeyBase: "s", Iterations: 1}},
		{name: "zero iterations", cfg: config.Config{App: "a", SecretKeyBase: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSigner_MatchesConfiguredKey(t *testing.T) {
	cfg := config.Default()
	cfg.SecretKeyBase = "s3cret"

	s, err := cfg.Signer()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	token, err := s.Sign("payload", "test")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !signer.MustNew([]byte("s3cret")).Valid(token, "test") {
		t.Fatalf("default config should derive the default key")
	}

	cfg.Salt = "other"
	other, err := cfg.Signer()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	if other.Valid(token, "test") {
		t.Fatalf("different salt should not verify")
	}

	if got := cfg.Redacted().SecretKeyBase; got != "[redacted]" {
		t.Fatalf("unexpected redacted secret %q", got)
	}
}
