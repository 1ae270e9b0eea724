package views

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/mailtarget/internal/web/models"
)

type testPage struct {
	Title string
	Lang  string
	Flash string
	Data  any
}

func (p testPage) T(key string, args ...any) string { return key }

func TestRender(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = e.Render(&buf, "dashboard", testPage{
		Title: "Dashboard",
		Lang:  "en-US",
		Flash: "done",
		Data: map[string]any{
			"Stats":    []models.Stat{{Label: "Members <b>", Nb: 3}},
			"Mailings": []models.Mailing{},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `<html lang="en-US">`)
	assert.Contains(t, out, `<p class="flash">done</p>`)
	assert.Contains(t, out, "Members &lt;b&gt;")
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	assert.Error(t, e.Render(&bytes.Buffer{}, "missing", testPage{}))
}
