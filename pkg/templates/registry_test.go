package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/pkg/errors"
)

func TestRegistryLoadAndRender(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "telegram")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "greeting.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Hello {{.Name}}\n"), 0o644))

	reg, err := NewRegistry(base)
	require.NoError(t, err)

	tmpl, err := reg.GetTemplate("telegram/greeting")
	require.NoError(t, err)

	rendered, err := tmpl.Render(map[string]string{"Name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", rendered)

	// parsed content is cached; edits on disk do not leak into loaded templates
	require.NoError(t, os.WriteFile(path, []byte("Hi {{.Name}}"), 0o644))
	rendered, err = tmpl.Render(map[string]string{"Name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Bob", rendered)
}

func TestRegistryLazyLoad(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	require.NoError(t, err)

	path := filepath.Join(base, "telegram", "late.tmpl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("Size {{.Size}}"), 0o644))

	rendered, err := reg.Render("telegram/late", map[string]int{"Size": 500})
	require.NoError(t, err)
	assert.Equal(t, "Size 500", rendered)
}

func TestRegistryMissing(t *testing.T) {
	reg, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = reg.Render("telegram/nope", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorContains(t, reg.Require("telegram/a", "telegram/b"), "telegram/a, telegram/b")
}

func TestEmbeddedTelegramTemplates(t *testing.T) {
	reg := Get()

	require.NoError(t, reg.Require(
		"telegram/welcome",
		"telegram/help",
		"telegram/ask_size",
		"telegram/invalid_size",
		"telegram/ask_quality",
		"telegram/processing",
		"telegram/result",
		"telegram/error",
		"telegram/cancelled",
		"telegram/invalid_input",
	))

	out, err := reg.Render("telegram/error", map[string]string{"Detail": "Quality must be between 1 and 95."})
	require.NoError(t, err)
	assert.Equal(t, "Error: Quality must be between 1 and 95.\nPlease try again.", out)

	out, err = reg.Render("telegram/result", map[string]any{
		"Report": map[string]string{"OriginalKB": "976.56", "CompressedKB": "480.00", "Ratio": "2.03"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Here is your compressed image.\n"+
		"Original size: 976.56 KB\n"+
		"Compressed size: 480.00 KB\n"+
		"Compression ratio: 2.03\n\n"+
		"Do you want to compress another photo? Send another photo or type /cancel to stop.", out)

	out, err = reg.Render("telegram/welcome", nil)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the Image Compressor Bot!\n\nSend me a photo you want to compress or type /help for more instructions.", out)
}
