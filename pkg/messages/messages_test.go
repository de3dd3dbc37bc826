package messages_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"whatstasker/pkg/messages"
)

func writeCatalog(t *testing.T, content string) *messages.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return messages.Load(path)
}

func TestCatalog_SubstitutesVariables(t *testing.T) {
	catalog := writeCatalog(t, `
greeting:
  en: "Hello {name}, today is {date}."
  fr: "Bonjour {name}, nous sommes le {date}."
`)

	got := catalog.Get("greeting", "en", map[string]string{"name": "Sam", "date": "Monday"})
	require.Equal(t, "Hello Sam, today is Monday.", got)

	got = catalog.Get("greeting", "fr", map[string]string{"name": "Sam", "date": "lundi"})
	require.Equal(t, "Bonjour Sam, nous sommes le lundi.", got)
}

func TestCatalog_FallsBackToEnglishThenKey(t *testing.T) {
	catalog := writeCatalog(t, `
greeting:
  en: "Hello."
`)

	require.Equal(t, "Hello.", catalog.Get("greeting", "nl", nil))
	require.Equal(t, "missing_key", catalog.Get("missing_key", "en", nil))
}

func TestCatalog_MissingFileDegradesToKeys(t *testing.T) {
	catalog := messages.Load("/path/does/not/exist.yaml")
	require.Equal(t, "morning_summary", catalog.Get("morning_summary", "en", nil))
}
