package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecretFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	return path
}

func TestLoadInlineValue(t *testing.T) {
	secret, err := Load(Source{Name: "token", Value: "  s3cret  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "s3cret" {
		t.Fatalf("expected trimmed secret, got %q", secret)
	}
}

func TestLoadFileTakesPrecedence(t *testing.T) {
	path := writeSecretFile(t, "from-file\n")

	secret, err := Load(Source{Name: "token", Value: "inline", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-file" {
		t.Fatalf("expected file content to win, got %q", secret)
	}
}

func TestLoadFromEnvPointer(t *testing.T) {
	path := writeSecretFile(t, "from-env-file")
	t.Setenv("TEST_SECRET_FILE", path)

	secret, err := Load(Source{Name: "token", Env: "TEST_SECRET_FILE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-env-file" {
		t.Fatalf("unexpected secret: %q", secret)
	}
}

func TestLoadFileBeatsEnv(t *testing.T) {
	explicit := writeSecretFile(t, "explicit")
	t.Setenv("TEST_SECRET_FILE", writeSecretFile(t, "from-env"))

	secret, err := Load(Source{Name: "token", File: explicit, Env: "TEST_SECRET_FILE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "explicit" {
		t.Fatalf("expected explicit file to win, got %q", secret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(Source{Name: "token", File: "/does/not/exist"}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptySources(t *testing.T) {
	if _, err := Load(Source{Name: "token"}); err == nil {
		t.Fatalf("expected error when nothing is configured")
	}

	path := writeSecretFile(t, "   \n")
	if _, err := Load(Source{Name: "token", File: path}); err == nil {
		t.Fatalf("expected error for empty secret file")
	}
}
