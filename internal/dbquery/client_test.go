package dbquery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	container string
	commands  [][]string
	results   []ExecResult
	err       error
}

func (f *fakeExecutor) Exec(_ context.Context, containerName string, cmd []string) (ExecResult, error) {
	f.container = containerName
	f.commands = append(f.commands, cmd)
	if f.err != nil {
		return ExecResult{}, f.err
	}
	i := len(f.commands) - 1
	if i < len(f.results) {
		return f.results[i], nil
	}
	return ExecResult{}, nil
}

func (f *fakeExecutor) sql(i int) string {
	cmd := f.commands[i]
	return cmd[len(cmd)-1]
}

func csvOut(s string) ExecResult {
	return ExecResult{Stdout: []byte(s)}
}

func TestQuery_BuildsPsqlCommand(t *testing.T) {
	exec := &fakeExecutor{results: []ExecResult{csvOut("a,b\n1,\"x, y\"\n2,z\n")}}
	client := NewClient(exec, "cloudtune-db", "cloudtune", "cloudtune")

	rows, err := client.Query(context.Background(), "SELECT 1;")
	require.NoError(t, err)

	assert.Equal(t, "cloudtune-db", exec.container)
	assert.Equal(t, []string{
		"psql", "-U", "cloudtune", "-d", "cloudtune", "--csv",
		"-v", "ON_ERROR_STOP=1", "-P", "pager=off", "-c", "SELECT 1;",
	}, exec.commands[0])
	assert.Equal(t, []map[string]string{
		{"a": "1", "b": "x, y"},
		{"a": "2", "b": "z"},
	}, rows)
}

func TestQuery_EmptyOutput(t *testing.T) {
	client := NewClient(&fakeExecutor{results: []ExecResult{csvOut("  \n")}}, "db", "u", "d")
	rows, err := client.Query(context.Background(), "SELECT 1;")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQuery_NonZeroExit(t *testing.T) {
	exec := &fakeExecutor{results: []ExecResult{{Stderr: []byte("ERROR: relation missing\n"), ExitCode: 1}}}
	client := NewClient(exec, "db", "u", "d")

	_, err := client.Query(context.Background(), "SELECT 1;")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, err.Error(), "(1): ERROR: relation missing")
}

func TestQuery_ExecutorError(t *testing.T) {
	client := NewClient(&fakeExecutor{err: errors.New("no such container")}, "db", "u", "d")
	_, err := client.Query(context.Background(), "SELECT 1;")
	assert.EqualError(t, err, "no such container")
}

func TestUserByEmail(t *testing.T) {
	exec := &fakeExecutor{results: []ExecResult{
		csvOut("id,email,username,created_at\n7,ann@example.com,ann,2025-01-02 03:04:05+00\n"),
	}}
	client := NewClient(exec, "db", "u", "d")

	user, err := client.UserByEmail(context.Background(), "  O'Hara@Example.com ")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "ann", user.Username)
	assert.Contains(t, exec.sql(0), "WHERE lower(email) = 'o''hara@example.com' ")
}

func TestUserByEmail_NotFound(t *testing.T) {
	client := NewClient(&fakeExecutor{results: []ExecResult{csvOut("id,email,username,created_at\n")}}, "db", "u", "d")
	user, err := client.UserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestStorageSummary(t *testing.T) {
	exec := &fakeExecutor{results: []ExecResult{csvOut("used_bytes,tracks_count\n1048576,3\n")}}
	client := NewClient(exec, "db", "u", "d")

	summary, err := client.StorageSummary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), summary.UsedBytes)
	assert.Equal(t, 3, summary.TracksCount)
	assert.Contains(t, exec.sql(0), "WHERE ul.user_id = 7;")
}

func TestTracks_Paging(t *testing.T) {
	exec := &fakeExecutor{results: []ExecResult{
		csvOut("total_tracks\n12\n"),
		csvOut("id,title,filesize,upload_date\n11,song.mp3,2048,2025-02-01 10:00:00\n"),
	}}
	client := NewClient(exec, "db", "u", "d")

	tracks, total, err := client.Tracks(context.Background(), 7, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, tracks, 1)
	assert.Equal(t, "song.mp3", tracks[0].Title)
	assert.Equal(t, int64(2048), tracks[0].FileSize)
	assert.True(t, strings.HasSuffix(exec.sql(1), "LIMIT 5 OFFSET 10;"))
}

func TestPlaylists(t *testing.T) {
	exec := &fakeExecutor{results: []ExecResult{
		csvOut("total_playlists\n2\n"),
		csvOut("id,name,is_favorite,created_at,updated_at,song_count\n1,Favorites,t,x,y,4\n2,Road,f,x,y,0\n"),
	}}
	client := NewClient(exec, "db", "u", "d")

	playlists, total, err := client.Playlists(context.Background(), 7, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, playlists, 2)
	assert.True(t, playlists[0].IsFavorite)
	assert.Equal(t, 4, playlists[0].SongCount)
	assert.False(t, playlists[1].IsFavorite)
	assert.True(t, strings.HasSuffix(exec.sql(1), "LIMIT 5 OFFSET 0;"))
}
