package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cloudtune-ops/internal/deploy"
	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestFormatMonitoringMessage(t *testing.T) {
	testCases := []struct {
		name string
		kind string
		raw  string
		want string
	}{
		{
			name: "key value lines",
			kind: "status",
			raw:  "Status: ok\n\n  Uptime: 2h  \n",
			want: "📊 Состояние сервера\n\n• <b>Status:</b> <code>ok</code>\n• <b>Uptime:</b> <code>2h</code>",
		},
		{
			name: "section headers in full report",
			kind: "all",
			raw:  "Runtime\nGoroutines: 48",
			want: "🧾 Полный отчет\n\n\n<b>Runtime</b>\n• <b>Goroutines:</b> <code>48</code>",
		},
		{
			name: "plain line outside full report",
			kind: "runtime",
			raw:  "healthy <3",
			want: "⚙️ Рантайм\n\n• healthy &lt;3",
		},
		{
			name: "value keeps extra colons",
			kind: "connections",
			raw:  "Started: 10:00:00",
			want: "🔌 Подключения\n\n• <b>Started:</b> <code>10:00:00</code>",
		},
		{
			name: "empty body",
			kind: "unknown",
			raw:  "  \n",
			want: "📌 Мониторинг\n\n• Нет данных",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatMonitoringMessage(tc.kind, tc.raw))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", formatBytes(int64(-5)))
	assert.Equal(t, "1023 B", formatBytes(int64(1023)))
	assert.Equal(t, "1.00 KB", formatBytes(int64(1024)))
	assert.Equal(t, "1.50 MB", formatBytes(uint64(3<<19)))
	assert.Equal(t, "2.00 TB", formatBytes(uint64(2<<40)))
	assert.Equal(t, "2048.00 TB", formatBytes(uint64(2<<50)))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 48))
	assert.Equal(t, "абв…", shorten("абвгд", 4))
	assert.Equal(t, "abcd", shorten("abcd", 4))
}

func TestFormatHelp(t *testing.T) {
	text := formatHelp(90 * time.Second)
	assert.Contains(t, text, "• /user &lt;email&gt;")
	assert.True(t, strings.HasSuffix(text, "⏱️ Автопроверка backend каждые 90 сек."))
}

func TestFormatSnapshot(t *testing.T) {
	snap := &models.Snapshot{
		TimestampUTC:       "2026-05-01T10:00:00Z",
		UptimeSeconds:      3900,
		HTTPActiveRequests: 3,
		GoMemoryAllocBytes: 64 << 20,
		UploadsFSFreeBytes: 10 << 30,
		UsersTotal:         7,
	}

	text := formatSnapshot(snap)
	assert.True(t, strings.HasPrefix(text, "🧪 <b>Технический снимок</b>\n🕒 <code>2026-05-01T10:00:00Z</code>"))
	assert.Contains(t, text, "⏱️ Uptime: <code>3900 сек (1 hour 5 minutes)</code>")
	assert.Contains(t, text, "🧠 Go alloc: <code>64.00 MB</code>")
	assert.Contains(t, text, "💾 Uploads free: <code>10.00 GB</code>")
	assert.Contains(t, text, "👥 Users: <code>7</code>")
	assert.NotContains(t, text, "Upload requests")

	snap.Upload = &models.UploadStats{RequestsTotal: 40, Status4xxTotal: 4, ClientErrorRatePct: 10}
	assert.Contains(t, formatSnapshot(snap), "📤 Upload 4xx: <code>4</code> (<code>10.00%</code>)")
}

func TestFormatUsersPage(t *testing.T) {
	page := &models.UsersPage{
		Page:       2,
		TotalUsers: 3,
		TotalPages: 2,
		Users: []models.MonitorUser{{
			Email:     "carol@example.com",
			Username:  "<carol>",
			UsedBytes: 2048,
			CreatedAt: time.Date(2026, 1, 15, 8, 45, 0, 0, time.UTC),
		}},
	}

	want := "👥 <b>Пользователи CloudTune</b>\n" +
		"Всего пользователей: <b>3</b>\n" +
		"Страница: <b>2/2</b>\n\n" +
		"1. 📧 <code>carol@example.com</code> | 👤 <b>&lt;carol&gt;</b>\n" +
		"   💽 Занято: <code>2.00 KB</code>\n" +
		"   🗓️ Регистрация: <code>2026-01-15 08:45:00 UTC</code>"
	assert.Equal(t, want, formatUsersPage(page))

	empty := formatUsersPage(&models.UsersPage{Page: 1})
	assert.True(t, strings.HasSuffix(empty, "Страница: <b>1/1</b>\n\nПользователи не найдены."))
}

func TestFormatUserCard(t *testing.T) {
	user := &models.LibraryUser{ID: 5, Email: "alice@example.com", Username: "alice", CreatedAt: "2025-09-01T10:00:00Z"}
	summary := models.StorageSummary{UsedBytes: 1234567, TracksCount: 3}

	assert.Equal(t,
		"👤 <b>Карточка пользователя</b>\n\n📧 <code>alice@example.com</code>\n👤 Username: <b>alice</b>\nНажмите кнопку ниже для детальной сводки.",
		formatUserHome(user))

	about := formatUserAbout(user, summary)
	assert.Contains(t, about, "🆔 ID: <code>5</code>")
	assert.Contains(t, about, "🗓️ Регистрация: <code>2025-09-01 10:00:00 UTC</code>")
	assert.Contains(t, about, "Всего треков в user_library: <b>3</b>")
	assert.Contains(t, about, "Занято: <code>1,234,567</code> байт (примерно <code>1.18 MB</code>)")

	files := formatUserFiles(summary)
	assert.True(t, strings.HasPrefix(files, "🎵 <b>Файлы пользователя</b>"))
	assert.True(t, strings.HasSuffix(files, "Нажмите <b>Треки</b>, чтобы открыть список по 5 шт."))

	assert.Equal(t,
		"📚 <b>Плейлисты пользователя</b>\n\nВсего плейлистов: <b>4</b>\n\nНажмите <b>Список</b>, чтобы открыть плейлисты по 5 шт.",
		formatUserPlaylists(4))
}

func TestFormatTracksPage(t *testing.T) {
	page := service.Page[models.Track]{
		Page:       2,
		TotalPages: 3,
		Total:      11,
		Items: []models.Track{
			{ID: "6", Title: strings.Repeat("x", 100), FileSize: 5 << 20, UploadDate: "2026-02-01T12:00:00Z"},
		},
	}

	text := formatTracksPage(page)
	assert.Contains(t, text, "Страница: <b>2/3</b>\nВсего треков: <b>11</b>")
	assert.Contains(t, text, "6. <b>"+strings.Repeat("x", 79)+"…</b>")
	assert.Contains(t, text, "   Размер: <code>5.00 MB</code>")
	assert.True(t, strings.HasSuffix(text, "   Дата: <code>2026-02-01 12:00:00 UTC</code>"))

	empty := formatTracksPage(service.Page[models.Track]{Page: 1, TotalPages: 1})
	assert.True(t, strings.HasSuffix(empty, "Треки не найдены."))
}

func TestFormatPlaylistsPage(t *testing.T) {
	page := service.Page[models.Playlist]{
		Page:       1,
		TotalPages: 1,
		Total:      2,
		Items: []models.Playlist{
			{ID: "1", Name: "Favorites", IsFavorite: true, SongCount: 4},
			{ID: "2", Name: "Road", SongCount: 0},
		},
	}

	want := "📚 <b>Плейлисты пользователя</b>\n" +
		"Страница: <b>1/1</b>\n" +
		"Всего плейлистов: <b>2</b>\n\n" +
		"1. <b>Favorites</b>\n   ID: <code>1</code>\n   Треков: <code>4</code>\n   Тип: <b>System favorites</b>\n\n" +
		"2. <b>Road</b>\n   ID: <code>2</code>\n   Треков: <code>0</code>"
	assert.Equal(t, want, formatPlaylistsPage(page))
}

func TestDeployTexts(t *testing.T) {
	start := deployStartText("feature/x", deploy.Options{AppDir: "/srv/app", ScriptPath: "/srv/deploy.sh"})
	assert.Equal(t, "🚀 <b>Запускаю деплой</b>\n• branch: <code>feature/x</code>\n• app_dir: <code>/srv/app</code>\n• script: <code>/srv/deploy.sh</code>", start)

	ok := deployResultText(models.DeployResult{Branch: "master", Stdout: "done <ok>\n"})
	assert.Equal(t, "✅ <b>Деплой завершен успешно</b>\n• branch: <code>master</code>\n\n<b>stdout</b>\n<pre>done &lt;ok&gt;</pre>", ok)

	failed := deployResultText(models.DeployResult{Branch: "master", ExitCode: 2, Stderr: "boom"})
	assert.Equal(t, "🚨 <b>Деплой завершился с ошибкой</b>\n• code: <code>2</code>\n• branch: <code>master</code>\n\n<b>stderr</b>\n<pre>boom</pre>", failed)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "🚨 <b>Ошибка мониторинга</b>\n<code>Backend вернул 500: &lt;html&gt;</code>",
		errorText("Ошибка мониторинга", errors.New("Backend вернул 500: <html>")))
}

func TestFormatHistory(t *testing.T) {
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	deploys := formatDeployHistory([]*models.DeployRecord{{
		ChatID:     100,
		Username:   "ops",
		Branch:     "master",
		Status:     models.DeploySucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
	}})
	assert.Contains(t, deploys, "✅ <code>2026-05-01 10:00</code> <b>master</b> · succeeded · 1 minute 30 seconds · ops")
	assert.Contains(t, formatDeployHistory(nil), "Деплоев еще не было.")

	alerts := formatAlertHistory([]*models.AlertRecord{{
		Kind:       models.AlertThresholdExceeded,
		IssueKey:   "memory",
		Recipients: 2,
		Delivered:  1,
		SentAt:     started,
	}})
	assert.Contains(t, alerts, "• <code>2026-05-01 10:00:00</code> <b>threshold_exceeded</b> <code>memory</code> (1/2)")
	assert.Contains(t, formatAlertHistory(nil), "Алертов еще не было.")
}

func TestDeleteResultText(t *testing.T) {
	text := deleteResultText(&models.DeleteUserResult{
		Email:   "bob@example.com",
		UserID:  "2",
		Summary: models.DeleteUserSummary{DeletedSongs: 3, DeletedPlaylists: 1},
	})
	assert.Contains(t, text, "• email: <code>bob@example.com</code>")
	assert.Contains(t, text, "• удалено треков: <code>3</code>")
	assert.Contains(t, text, "• удалено плейлистов: <code>1</code>")
}
