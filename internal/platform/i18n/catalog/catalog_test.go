package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("pt-BR") {
		t.Fatalf("expected locale pt-BR")
	}
	if got := bundle.Locales(); len(got) != 2 || got[0] != "en-US" || got[1] != "pt-BR" {
		t.Fatalf("locales = %v", got)
	}
}

func TestEmbeddedLocalesDefineTheSameKeys(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	base := bundle.locales[BaseLocale]
	for _, locale := range bundle.Locales() {
		messages := bundle.locales[locale]
		if len(messages) != len(base) {
			t.Fatalf("%s has %d messages, %s has %d", locale, len(messages), BaseLocale, len(base))
		}
		for key := range base {
			if _, ok := messages[key]; !ok {
				t.Fatalf("%s is missing %q", locale, key)
			}
		}
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	bundle := Default()
	got, ok := bundle.Message("fr-FR", "chronicle.power.none")
	if !ok || got != "no power" {
		t.Fatalf("message = %q, %v", got, ok)
	}
	got, ok = bundle.Message("pt-BR", "chronicle.power.none")
	if !ok || got != "nenhuma potência" {
		t.Fatalf("pt-BR message = %q, %v", got, ok)
	}
	if _, ok := bundle.Message("en-US", "chronicle.missing"); ok {
		t.Fatal("expected missing key")
	}
}

func TestDefaultRegistersBaseLanguage(t *testing.T) {
	_ = Default()
	printer := message.NewPrinter(language.English)
	if got := printer.Sprintf("chronicle.power.none"); got != "no power" {
		t.Fatalf("en printer = %q", got)
	}
	printer = message.NewPrinter(language.MustParse("pt-BR"))
	if got := printer.Sprintf("chronicle.power.none"); got != "nenhuma potência" {
		t.Fatalf("pt-BR printer = %q", got)
	}
}

func TestLoadFromFSRejectsKeyOutsideNamespace(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/chronicle.yaml"), `locale: "en-US"
namespace: "chronicle"
messages:
  "web.bad": "nope"
`)

	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected namespace prefix error")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossFiles(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/chronicle.yaml"), `locale: "en-US"
namespace: "chronicle"
messages:
  "chronicle.a": "a"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/other.yaml"), `locale: "en-US"
namespace: "other"
messages:
  "other.a": "b"
`)
	if _, err := LoadFromFS(os.DirFS(tempDir)); err != nil {
		t.Fatalf("distinct namespaces should load: %v", err)
	}

	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/chronicle.yaml"), `locale: "en-US"
namespace: "chronicle"
messages:
  "chronicle.a": "a"
  " chronicle.a": "b"
`)
	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/pt-BR/chronicle.yaml"), `locale: "pt-BR"
namespace: "chronicle"
messages:
  "chronicle.a": "a"
`)
	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestLoadFromFSRejectsLocaleMismatch(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/chronicle.yaml"), `locale: "pt-BR"
namespace: "chronicle"
messages:
  "chronicle.a": "a"
`)
	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
