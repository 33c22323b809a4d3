package podfeed

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Meta{
		Title:        "My favorites",
		Link:         "https://talks.example/",
		MediaBaseURL: "https://media.example/uploads/",
	}, []model.Episode{
		{ID: 1, Title: "Here &amp; Now", AudioURL: "2019/04/here.mp3", Date: "2019-04-02T10:11:12"},
		{ID: 2, Title: "Link only", Link: "https://talks.example/link-only/"},
		{ID: 3, Title: "Nothing to point at"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>My favorites</title>")
	assert.Contains(t, out, "Here &amp; Now")
	assert.Contains(t, out, `url="https://media.example/uploads/2019/04/here.mp3"`)
	assert.Contains(t, out, "talkshelf-1")
	assert.Contains(t, out, "https://talks.example/link-only/")
	assert.NotContains(t, out, "Nothing to point at")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_ReportsWriterError(t *testing.T) {
	err := Write(failingWriter{}, Meta{Title: "x", Link: "https://talks.example/"}, []model.Episode{
		{ID: 1, Title: "One", AudioURL: "one.mp3"},
	})
	assert.Error(t, err)
}
