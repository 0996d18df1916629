package dbquery

import (
	"fmt"
	"strings"
)

// quote escapes a string literal for inclusion between single quotes.
// psql -c takes no bind parameters, so every literal goes through here.
func quote(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func pageOffset(page, limit int) (int, int) {
	limit = max(limit, 1)
	return limit, max(page-1, 0) * limit
}

func userByEmailSQL(email string) string {
	return "SELECT id, email, username, created_at " +
		"FROM users " +
		fmt.Sprintf("WHERE lower(email) = '%s' ", quote(strings.ToLower(strings.TrimSpace(email)))) +
		"LIMIT 1;"
}

func storageSummarySQL(userID int64) string {
	return "SELECT COALESCE(SUM(s.filesize), 0)::bigint AS used_bytes, " +
		"COUNT(*)::int AS tracks_count " +
		"FROM songs s " +
		"JOIN user_library ul ON ul.song_id = s.id " +
		fmt.Sprintf("WHERE ul.user_id = %d;", userID)
}

func tracksCountSQL(userID int64) string {
	return "SELECT COUNT(*)::int AS total_tracks " +
		"FROM songs s " +
		"JOIN user_library ul ON ul.song_id = s.id " +
		fmt.Sprintf("WHERE ul.user_id = %d;", userID)
}

func tracksPageSQL(userID int64, page, limit int) string {
	limit, offset := pageOffset(page, limit)
	return "SELECT s.id, COALESCE(s.original_filename, s.filename) AS title, " +
		"s.filesize::bigint AS filesize, s.upload_date " +
		"FROM songs s " +
		"JOIN user_library ul ON ul.song_id = s.id " +
		fmt.Sprintf("WHERE ul.user_id = %d ", userID) +
		"ORDER BY s.upload_date DESC, s.id DESC " +
		fmt.Sprintf("LIMIT %d OFFSET %d;", limit, offset)
}

func playlistsCountSQL(userID int64) string {
	return "SELECT COUNT(*)::int AS total_playlists " +
		"FROM playlists " +
		fmt.Sprintf("WHERE owner_id = %d;", userID)
}

func playlistsPageSQL(userID int64, page, limit int) string {
	limit, offset := pageOffset(page, limit)
	return "SELECT p.id, p.name, p.is_favorite, p.created_at, p.updated_at, " +
		"COUNT(ps.song_id)::int AS song_count " +
		"FROM playlists p " +
		"LEFT JOIN playlist_songs ps ON ps.playlist_id = p.id " +
		fmt.Sprintf("WHERE p.owner_id = %d ", userID) +
		"GROUP BY p.id, p.name, p.is_favorite, p.created_at, p.updated_at " +
		"ORDER BY p.is_favorite DESC, p.created_at DESC " +
		fmt.Sprintf("LIMIT %d OFFSET %d;", limit, offset)
}
