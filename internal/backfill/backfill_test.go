package backfill

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chatsink/pkg/ingest"
	"chatsink/pkg/store"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestRunOnceReplaysDirectory(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	writeFile(t, dir, "01_create.json", `{"id":"m1","from":"111","text":{"body":"hi"},"timestamp":"1700000000"}`)
	writeFile(t, dir, "02_status.json", `{"status":"read","meta_msg_id":"m1"}`)
	writeFile(t, dir, "ignored.txt", `not a payload`)

	st, err := RunOnce(context.Background(), &ingest.Processor{}, dir)
	require.NoError(t, err)
	require.Equal(t, 2, st.Files)
	require.Equal(t, 2, st.Applied)
	require.Equal(t, 0, st.Failed)

	m, err := store.GetMessage("m1")
	require.NoError(t, err)
	require.Equal(t, "read", string(m.Status))
}

func TestRunOncePerFileIsolation(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	writeFile(t, dir, "01_bad.json", `{corrupt`)
	writeFile(t, dir, "02_good.json", `{"id":"m2","from":"222","body":"still here"}`)

	st, err := RunOnce(context.Background(), &ingest.Processor{}, dir)
	require.NoError(t, err)
	require.Equal(t, 2, st.Files)
	require.Equal(t, 1, st.Failed)
	require.Equal(t, 1, st.Applied)

	_, err = store.GetMessage("m2")
	require.NoError(t, err)
}

func TestRunOnceIdempotent(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	writeFile(t, dir, "m.json", `{"id":"m1","from":"111","body":"hi"}`)

	_, err := RunOnce(context.Background(), &ingest.Processor{}, dir)
	require.NoError(t, err)
	_, err = RunOnce(context.Background(), &ingest.Processor{}, dir)
	require.NoError(t, err)

	msgs, err := store.ListConversationMessages("111")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestRunOnceEmptyDir(t *testing.T) {
	st, err := RunOnce(context.Background(), &ingest.Processor{}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, Stats{}, st)
}
