// Package dbquery runs read-only lookups against the CloudTune PostgreSQL
// database by executing psql inside its container.
package dbquery

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloudtune-ops/internal/models"
)

const defaultTimeout = 20 * time.Second

// ErrQueryFailed is returned when psql exits with a non-zero code.
var ErrQueryFailed = errors.New("DB query failed")

type Client struct {
	exec      Executor
	container string
	user      string
	database  string
	timeout   time.Duration
}

func NewClient(exec Executor, containerName, user, database string) *Client {
	return &Client{
		exec:      exec,
		container: containerName,
		user:      user,
		database:  database,
		timeout:   defaultTimeout,
	}
}

// Query runs sql through psql in CSV mode and returns rows keyed by column name.
func (c *Client) Query(ctx context.Context, sql string) ([]map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := []string{
		"psql",
		"-U", c.user,
		"-d", c.database,
		"--csv",
		"-v", "ON_ERROR_STOP=1",
		"-P", "pager=off",
		"-c", sql,
	}
	res, err := c.exec.Exec(ctx, c.container, cmd)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w (%d): %s", ErrQueryFailed, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return parseCSV(string(res.Stdout))
}

func parseCSV(text string) ([]map[string]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UserByEmail returns nil when no user has this email.
func (c *Client) UserByEmail(ctx context.Context, email string) (*models.LibraryUser, error) {
	rows, err := c.Query(ctx, userByEmailSQL(email))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	id, err := strconv.ParseInt(row["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", row["id"], err)
	}
	return &models.LibraryUser{
		ID:        id,
		Email:     row["email"],
		Username:  row["username"],
		CreatedAt: row["created_at"],
	}, nil
}

func (c *Client) StorageSummary(ctx context.Context, userID int64) (models.StorageSummary, error) {
	rows, err := c.Query(ctx, storageSummarySQL(userID))
	if err != nil {
		return models.StorageSummary{}, err
	}
	if len(rows) == 0 {
		return models.StorageSummary{}, nil
	}
	return models.StorageSummary{
		UsedBytes:   atoi64(rows[0]["used_bytes"]),
		TracksCount: int(atoi64(rows[0]["tracks_count"])),
	}, nil
}

// Tracks returns one page of the user's library and the total track count.
func (c *Client) Tracks(ctx context.Context, userID int64, page, limit int) ([]models.Track, int, error) {
	countRows, err := c.Query(ctx, tracksCountSQL(userID))
	if err != nil {
		return nil, 0, err
	}
	total := firstInt(countRows, "total_tracks")

	rows, err := c.Query(ctx, tracksPageSQL(userID, page, limit))
	if err != nil {
		return nil, 0, err
	}
	tracks := make([]models.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, models.Track{
			ID:         row["id"],
			Title:      row["title"],
			FileSize:   atoi64(row["filesize"]),
			UploadDate: row["upload_date"],
		})
	}
	return tracks, total, nil
}

// Playlists returns one page of the user's playlists and their total count.
func (c *Client) Playlists(ctx context.Context, userID int64, page, limit int) ([]models.Playlist, int, error) {
	countRows, err := c.Query(ctx, playlistsCountSQL(userID))
	if err != nil {
		return nil, 0, err
	}
	total := firstInt(countRows, "total_playlists")

	rows, err := c.Query(ctx, playlistsPageSQL(userID, page, limit))
	if err != nil {
		return nil, 0, err
	}
	playlists := make([]models.Playlist, 0, len(rows))
	for _, row := range rows {
		playlists = append(playlists, models.Playlist{
			ID:         row["id"],
			Name:       row["name"],
			IsFavorite: isTrue(row["is_favorite"]),
			SongCount:  int(atoi64(row["song_count"])),
		})
	}
	return playlists, total, nil
}

// PlaylistCount returns only the number of playlists owned by the user.
func (c *Client) PlaylistCount(ctx context.Context, userID int64) (int, error) {
	rows, err := c.Query(ctx, playlistsCountSQL(userID))
	if err != nil {
		return 0, err
	}
	return firstInt(rows, "total_playlists"), nil
}

func firstInt(rows []map[string]string, col string) int {
	if len(rows) == 0 {
		return 0
	}
	return int(atoi64(rows[0][col]))
}

func atoi64(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1":
		return true
	}
	return false
}
