package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubProvider struct {
	name   string
	values map[string]string
	closed bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := s.values[ref]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestExpandEnv(t *testing.T) {
	env := map[string]string{"DB_HOST": "db.internal", "EMPTY": ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "postgres://${DB_HOST}/al", want: "postgres://db.internal/al"},
		{in: "$DB_HOST", want: "db.internal"},
		{in: "x${EMPTY}y", want: "xy"},
		{in: "$$${DB_HOST}", want: "$db.internal"},
		{in: "cost: $$5", want: "cost: $5"},
		{in: "${B_MISSING} ${A_MISSING} ${B_MISSING}", wantErr: "A_MISSING, B_MISSING"},
	}
	for _, tt := range tests {
		got, err := expandEnv(tt.in, lookup)
		if tt.wantErr != "" {
			if !errors.Is(err, ErrMissingEnv) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expandEnv(%q) err = %v, want %q", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("expandEnv(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestExpandEnvStrict_ProcessEnv(t *testing.T) {
	t.Setenv("AL_TEST_REGION", "us-east")
	got, err := ExpandEnvStrict("region=${AL_TEST_REGION}")
	if err != nil || got != "region=us-east" {
		t.Fatalf("ExpandEnvStrict = %q, %v", got, err)
	}
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in            string
		provider, ref string
		ok            bool
	}{
		{"secretref:env:OPENAI_API_KEY", "env", "OPENAI_API_KEY", true},
		{"secretref:file:/run/secrets/db:primary", "file", "/run/secrets/db:primary", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"plain", "", "", false},
	}
	for _, tt := range tests {
		p, r, ok := ParseSecretRef(tt.in)
		if p != tt.provider || r != tt.ref || ok != tt.ok {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v", tt.in, p, r, ok)
		}
	}
}

func TestResolver(t *testing.T) {
	stub := &stubProvider{name: "stub", values: map[string]string{"key": "s3cr3t", "blank": ""}}
	r := NewResolver(true, stub)
	ctx := context.Background()

	got, err := r.ResolveValue(ctx, "secretref:stub:key")
	if err != nil || got != "s3cr3t" {
		t.Errorf("whole ref = %q, %v", got, err)
	}

	got, err = r.ResolveValue(ctx, "Bearer secretref:stub:key")
	if err != nil || got != "Bearer s3cr3t" {
		t.Errorf("inline ref = %q, %v", got, err)
	}

	got, err = r.ResolveValue(ctx, "no references")
	if err != nil || got != "no references" {
		t.Errorf("plain = %q, %v", got, err)
	}

	if _, err := r.ResolveValue(ctx, "secretref:stub:blank"); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("blank err = %v", err)
	}
	if _, err := r.ResolveValue(ctx, "secretref:vault:key"); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("unknown provider err = %v", err)
	}
	if _, err := r.ResolveValue(ctx, "x secretref:stub:nope"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("inline missing err = %v", err)
	}

	if err := r.Close(); err != nil || !stub.closed {
		t.Errorf("Close = %v, closed = %v", err, stub.closed)
	}
}

func TestResolver_ResolveFields(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"dsn": "postgres://db/al"}})
	dsn, key, empty := "secretref:stub:dsn", "literal", ""
	if err := r.ResolveFields(context.Background(), &dsn, &key, &empty, nil); err != nil {
		t.Fatal(err)
	}
	if dsn != "postgres://db/al" || key != "literal" || empty != "" {
		t.Errorf("fields = %q %q %q", dsn, key, empty)
	}

	bad := "secretref:stub:missing"
	if err := r.ResolveFields(context.Background(), &bad); err == nil {
		t.Error("missing secret resolved")
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("AL_TEST_TOKEN", "tok")
	p := NewEnvProvider()
	if v, err := p.Resolve(context.Background(), "AL_TEST_TOKEN"); err != nil || v != "tok" {
		t.Errorf("Resolve = %q, %v", v, err)
	}
	if _, err := p.Resolve(context.Background(), "AL_TEST_UNSET_TOKEN"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("unset err = %v", err)
	}
}

func TestFileProvider(t *testing.T) {
	outer := t.TempDir()
	dir := filepath.Join(outer, "secrets")
	if err := os.Mkdir(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "api_key"), []byte("sk-test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outer, "leak"), []byte("outside"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	p := NewFileProvider(dir)
	if v, err := p.Resolve(ctx, "api_key"); err != nil || v != "sk-test" {
		t.Errorf("relative = %q, %v", v, err)
	}
	if v, err := p.Resolve(ctx, filepath.Join(dir, "api_key")); err != nil || v != "sk-test" {
		t.Errorf("absolute = %q, %v", v, err)
	}
	if _, err := p.Resolve(ctx, "../leak"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("escape err = %v", err)
	}
	if _, err := NewFileProvider("").Resolve(ctx, "api_key"); err == nil {
		t.Error("relative path accepted without a dir")
	}
}

func TestRegistry(t *testing.T) {
	reg := Builtin()
	if got := strings.Join(reg.List(), ","); got != "env,file" {
		t.Errorf("List = %s", got)
	}
	if err := reg.Register("env", func(map[string]any) (Provider, error) { return NewEnvProvider(), nil }); err == nil {
		t.Error("duplicate registration accepted")
	}
	if _, err := reg.Create("vault", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("Create(vault) err = %v", err)
	}

	p, err := reg.Create("file", map[string]any{"dir": "/run/secrets"})
	if err != nil {
		t.Fatal(err)
	}
	if fp, ok := p.(*FileProvider); !ok || fp.Dir != "/run/secrets" {
		t.Errorf("file provider = %#v", p)
	}

	t.Setenv("AL_TEST_KEY", "from-env")
	res, err := reg.Resolver(nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := res.ResolveValue(context.Background(), "secretref:env:AL_TEST_KEY"); err != nil || v != "from-env" {
		t.Errorf("ResolveValue = %q, %v", v, err)
	}

	if _, err := reg.Resolver(map[string]map[string]any{"vault": nil}); err == nil {
		t.Error("Resolver accepted an unknown provider")
	}
}
