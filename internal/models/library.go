package models

// LibraryUser - пользователь, найденный прямым запросом к БД.
type LibraryUser struct {
	ID        int64
	Email     string
	Username  string
	CreatedAt string
}

// StorageSummary - объем и количество треков в библиотеке пользователя.
type StorageSummary struct {
	UsedBytes   int64
	TracksCount int
}

// Track - трек из библиотеки пользователя.
type Track struct {
	ID         string
	Title      string
	FileSize   int64
	UploadDate string
}

// Playlist - плейлист пользователя.
type Playlist struct {
	ID         string
	Name       string
	IsFavorite bool
	SongCount  int
}
