package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"schoolbot/app/conversation"
	"schoolbot/core/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type fakeOpener struct {
	content map[string]string
	err     error
}

func (f *fakeOpener) OpenFile(_ context.Context, fileID string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.content[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestSaveVoiceWritesOggUnderVoiceDir(t *testing.T) {
	dir := t.TempDir()
	store := NewMediaStore(dir)
	store.SetOpener(&fakeOpener{content: map[string]string{"f1": "OggS voice bytes"}})

	path, err := store.SaveVoice(context.Background(), conversation.FileRef{ID: "f1", UniqueID: "uniq1"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "voice", "uniq1.ogg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "OggS voice bytes", string(data))
}

func TestSavePhotoWritesJpgUnderImgDir(t *testing.T) {
	dir := t.TempDir()
	store := NewMediaStore(dir)
	store.SetOpener(&fakeOpener{content: map[string]string{"p1": "jpeg bytes"}})

	path, err := store.SavePhoto(context.Background(), conversation.FileRef{ID: "p1", UniqueID: "uniq2"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "img", "uniq2.jpg"), path)
}

func TestSaveWithoutOpenerFails(t *testing.T) {
	store := NewMediaStore(t.TempDir())

	_, err := store.SaveVoice(context.Background(), conversation.FileRef{ID: "f", UniqueID: "u"})
	require.Error(t, err)
}

func TestSaveOpenFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	store := NewMediaStore(dir)
	store.SetOpener(&fakeOpener{err: errors.New("telegram is down")})

	_, err := store.SaveVoice(context.Background(), conversation.FileRef{ID: "f1", UniqueID: "uniq1"})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "voice", "uniq1.ogg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveRequiresUniqueID(t *testing.T) {
	store := NewMediaStore(t.TempDir())
	store.SetOpener(&fakeOpener{content: map[string]string{"f1": "x"}})

	_, err := store.SavePhoto(context.Background(), conversation.FileRef{ID: "f1"})
	require.Error(t, err)
}
