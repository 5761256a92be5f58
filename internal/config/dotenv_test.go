package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("存在しない.envでエラーが返されました: %v", err)
	}
}

func TestLoadDotEnv_DoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "SALESCOUT_TEST_DOTENV_NEW=from-file\nSALESCOUT_TEST_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SALESCOUT_TEST_DOTENV_SET", "from-env")
	t.Setenv("SALESCOUT_TEST_DOTENV_NEW", "")
	os.Unsetenv("SALESCOUT_TEST_DOTENV_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv失敗: %v", err)
	}

	if got := os.Getenv("SALESCOUT_TEST_DOTENV_NEW"); got != "from-file" {
		t.Errorf("SALESCOUT_TEST_DOTENV_NEW = %q, want from-file", got)
	}
	if got := os.Getenv("SALESCOUT_TEST_DOTENV_SET"); got != "from-env" {
		t.Errorf("既存の環境変数が上書きされました: %q", got)
	}
}
