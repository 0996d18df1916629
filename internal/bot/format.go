package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"cloudtune-ops/internal/deploy"
	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

const (
	listTextLimit = 48
	itemTextLimit = 80
	historyLimit  = 10
)

var monitoringTitles = map[string]string{
	"status":      "📊 Состояние сервера",
	"storage":     "💾 Хранилище",
	"connections": "🔌 Подключения",
	"runtime":     "⚙️ Рантайм",
	"users":       "👥 Пользователи",
	"all":         "🧾 Полный отчет",
}

var esc = html.EscapeString

func formatHelp(interval time.Duration) string {
	return "🤖 <b>CloudTune Monitoring Bot</b>\n\n" +
		"Доступные команды:\n" +
		"• /status\n" +
		"• /storage\n" +
		"• /connections\n" +
		"• /runtime\n" +
		"• /users\n" +
		"• /user &lt;email&gt;\n" +
		"• /snapshot\n" +
		"• /all\n" +
		"• /deploy [branch]\n" +
		"• /deploys\n" +
		"• /alerts\n" +
		"• /delete_user &lt;email&gt;\n" +
		"• /help\n\n" +
		fmt.Sprintf("⏱️ Автопроверка backend каждые %d сек.", int(interval.Seconds()))
}

// formatMonitoringMessage renders a plain "key: value" report as a bullet list.
// In the "all" report lines without a colon are section headers.
func formatMonitoringMessage(kind, raw string) string {
	title, ok := monitoringTitles[kind]
	if !ok {
		title = "📌 Мониторинг"
	}

	var lines []string
	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		switch {
		case kind == "all" && !found:
			lines = append(lines, "\n<b>"+esc(line)+"</b>")
		case found:
			lines = append(lines, fmt.Sprintf("• <b>%s:</b> <code>%s</code>", esc(strings.TrimSpace(key)), esc(strings.TrimSpace(value))))
		default:
			lines = append(lines, "• "+esc(line))
		}
	}

	body := "• Нет данных"
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	return title + "\n\n" + body
}

func formatBytes[T int64 | uint64](size T) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(max(size, 0))
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", int64(value), units[idx])
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}

func shorten(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func formatTimestamp(raw string) string {
	if raw == "" {
		return "-"
	}
	return strings.ReplaceAll(strings.ReplaceAll(raw, "T", " "), "Z", " UTC")
}

func formatUptime(seconds int64) string {
	if seconds <= 0 {
		return "0 сек"
	}
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%d сек (%s)", seconds, durafmt.Parse(d).LimitFirstN(2).String())
}

func formatSnapshot(s *models.Snapshot) string {
	ts := s.TimestampUTC
	if ts == "" {
		ts = "-"
	}
	lines := []string{
		"🧪 <b>Технический снимок</b>",
		fmt.Sprintf("🕒 <code>%s</code>", esc(ts)),
		fmt.Sprintf("⏱️ Uptime: <code>%s</code>", formatUptime(s.UptimeSeconds)),
		"",
		fmt.Sprintf("🌐 HTTP active: <code>%d</code>", s.HTTPActiveRequests),
		fmt.Sprintf("🌐 HTTP total: <code>%d</code>", s.HTTPTotalRequests),
		fmt.Sprintf("🧵 Goroutines: <code>%d</code>", s.Goroutines),
		"",
		fmt.Sprintf("🗄️ DB open: <code>%d</code>", s.DBOpenConnections),
		fmt.Sprintf("🗄️ DB in_use: <code>%d</code>", s.DBInUseConnections),
		fmt.Sprintf("🗄️ DB wait_count: <code>%d</code>", s.DBWaitCount),
		"",
		fmt.Sprintf("🧠 Go alloc: <code>%s</code>", formatBytes(s.GoMemoryAllocBytes)),
		fmt.Sprintf("🧠 Go heap_in_use: <code>%s</code>", formatBytes(s.GoHeapInUseBytes)),
		fmt.Sprintf("🧠 Go sys: <code>%s</code>", formatBytes(s.GoMemorySysBytes)),
		"",
		fmt.Sprintf("💾 Uploads size: <code>%s</code>", formatBytes(s.UploadsSizeBytes)),
		fmt.Sprintf("💾 Uploads free: <code>%s</code>", formatBytes(s.UploadsFSFreeBytes)),
		fmt.Sprintf("💾 Uploads files: <code>%d</code>", s.UploadsFilesCount),
	}
	if u := s.Upload; u != nil {
		lines = append(lines,
			"",
			fmt.Sprintf("📤 Upload requests: <code>%d</code>", u.RequestsTotal),
			fmt.Sprintf("📤 Upload 4xx: <code>%d</code> (<code>%.2f%%</code>)", u.Status4xxTotal, u.ClientErrorRatePct),
			fmt.Sprintf("📤 Upload 5xx: <code>%d</code> (<code>%.2f%%</code>)", u.Status5xxTotal, u.ServerErrorRatePct),
		)
	}
	lines = append(lines,
		"",
		fmt.Sprintf("👥 Users: <code>%d</code>", s.UsersTotal),
		fmt.Sprintf("🎵 Songs: <code>%d</code>", s.SongsTotal),
		fmt.Sprintf("📚 Playlists: <code>%d</code>", s.PlaylistsTotal),
	)
	return strings.Join(lines, "\n")
}

func formatUsersPage(p *models.UsersPage) string {
	lines := []string{
		"👥 <b>Пользователи CloudTune</b>",
		fmt.Sprintf("Всего пользователей: <b>%d</b>", p.TotalUsers),
		fmt.Sprintf("Страница: <b>%d/%d</b>", p.Page, max(p.TotalPages, 1)),
		"",
	}
	if len(p.Users) == 0 {
		lines = append(lines, "Пользователи не найдены.")
	}
	for i, u := range p.Users {
		created := "-"
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.UTC().Format("2006-01-02 15:04:05") + " UTC"
		}
		lines = append(lines,
			fmt.Sprintf("%d. 📧 <code>%s</code> | 👤 <b>%s</b>", i+1, esc(shorten(orDash(u.Email), listTextLimit)), esc(shorten(orDash(u.Username), listTextLimit))),
			fmt.Sprintf("   💽 Занято: <code>%s</code>", formatBytes(u.UsedBytes)),
			fmt.Sprintf("   🗓️ Регистрация: <code>%s</code>", esc(created)),
			"",
		)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatUserHome(u *models.LibraryUser) string {
	return "👤 <b>Карточка пользователя</b>\n\n" +
		fmt.Sprintf("📧 <code>%s</code>\n", esc(orDash(u.Email))) +
		fmt.Sprintf("👤 Username: <b>%s</b>\n", esc(orDash(u.Username))) +
		"Нажмите кнопку ниже для детальной сводки."
}

func formatUsage(s models.StorageSummary) string {
	return fmt.Sprintf("Всего треков в user_library: <b>%d</b>\n", s.TracksCount) +
		fmt.Sprintf("Занято: <code>%s</code> байт (примерно <code>%s</code>)", humanize.Comma(s.UsedBytes), formatBytes(s.UsedBytes))
}

func formatUserAbout(u *models.LibraryUser, s models.StorageSummary) string {
	return "ℹ️ <b>О пользователе</b>\n\n" +
		fmt.Sprintf("🆔 ID: <code>%d</code>\n", u.ID) +
		fmt.Sprintf("📧 Email: <code>%s</code>\n", esc(orDash(u.Email))) +
		fmt.Sprintf("👤 Username: <b>%s</b>\n", esc(orDash(u.Username))) +
		fmt.Sprintf("🗓️ Регистрация: <code>%s</code>\n\n", esc(formatTimestamp(u.CreatedAt))) +
		formatUsage(s)
}

func formatUserFiles(s models.StorageSummary) string {
	return "🎵 <b>Файлы пользователя</b>\n\n" +
		formatUsage(s) + "\n\n" +
		"Нажмите <b>Треки</b>, чтобы открыть список по 5 шт."
}

func formatUserPlaylists(total int) string {
	return "📚 <b>Плейлисты пользователя</b>\n\n" +
		fmt.Sprintf("Всего плейлистов: <b>%d</b>\n\n", total) +
		"Нажмите <b>Список</b>, чтобы открыть плейлисты по 5 шт."
}

func formatTracksPage(p service.Page[models.Track]) string {
	lines := []string{
		"🎧 <b>Треки пользователя</b>",
		fmt.Sprintf("Страница: <b>%d/%d</b>", p.Page, max(p.TotalPages, 1)),
		fmt.Sprintf("Всего треков: <b>%d</b>", p.Total),
		"",
	}
	if len(p.Items) == 0 {
		return strings.Join(append(lines, "Треки не найдены."), "\n")
	}
	start := (p.Page - 1) * service.UserListPageSize
	for i, t := range p.Items {
		lines = append(lines,
			fmt.Sprintf("%d. <b>%s</b>", start+i+1, esc(shorten(orDash(t.Title), itemTextLimit))),
			fmt.Sprintf("   ID: <code>%s</code>", esc(orDash(t.ID))),
			fmt.Sprintf("   Размер: <code>%s</code>", formatBytes(t.FileSize)),
			fmt.Sprintf("   Дата: <code>%s</code>", esc(formatTimestamp(t.UploadDate))),
			"",
		)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func formatPlaylistsPage(p service.Page[models.Playlist]) string {
	lines := []string{
		"📚 <b>Плейлисты пользователя</b>",
		fmt.Sprintf("Страница: <b>%d/%d</b>", p.Page, max(p.TotalPages, 1)),
		fmt.Sprintf("Всего плейлистов: <b>%d</b>", p.Total),
		"",
	}
	if len(p.Items) == 0 {
		return strings.Join(append(lines, "Плейлисты не найдены."), "\n")
	}
	start := (p.Page - 1) * service.UserListPageSize
	for i, pl := range p.Items {
		lines = append(lines,
			fmt.Sprintf("%d. <b>%s</b>", start+i+1, esc(shorten(orDash(pl.Name), itemTextLimit))),
			fmt.Sprintf("   ID: <code>%s</code>", esc(orDash(pl.ID))),
			fmt.Sprintf("   Треков: <code>%d</code>", pl.SongCount),
		)
		if pl.IsFavorite {
			lines = append(lines, "   Тип: <b>System favorites</b>")
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func errorText(title string, err error) string {
	return fmt.Sprintf("🚨 <b>%s</b>\n<code>%s</code>", title, esc(err.Error()))
}

func userNotFoundText(email string) string {
	return "🔎 <b>Пользователь не найден</b>\n" + fmt.Sprintf("Email: <code>%s</code>", esc(email))
}

func deployStartText(branch string, opts deploy.Options) string {
	return "🚀 <b>Запускаю деплой</b>\n" +
		fmt.Sprintf("• branch: <code>%s</code>\n", esc(branch)) +
		fmt.Sprintf("• app_dir: <code>%s</code>\n", esc(opts.AppDir)) +
		fmt.Sprintf("• script: <code>%s</code>", esc(opts.ScriptPath))
}

func deployResultText(r models.DeployResult) string {
	var b strings.Builder
	if r.ExitCode == 0 {
		b.WriteString("✅ <b>Деплой завершен успешно</b>\n")
	} else {
		b.WriteString("🚨 <b>Деплой завершился с ошибкой</b>\n")
		fmt.Fprintf(&b, "• code: <code>%d</code>\n", r.ExitCode)
	}
	fmt.Fprintf(&b, "• branch: <code>%s</code>\n", esc(r.Branch))
	if out := deploy.TruncateOutput(r.Stdout, deploy.OutputLimit); out != "" {
		fmt.Fprintf(&b, "\n<b>stdout</b>\n<pre>%s</pre>", esc(out))
	}
	if out := deploy.TruncateOutput(r.Stderr, deploy.OutputLimit); out != "" {
		fmt.Fprintf(&b, "\n<b>stderr</b>\n<pre>%s</pre>", esc(out))
	}
	return b.String()
}

func deleteConfirmText(email string) string {
	return "⚠️ <b>Удалить пользователя?</b>\n" +
		fmt.Sprintf("Email: <code>%s</code>\n", esc(email)) +
		"Будут удалены профиль, библиотека, плейлисты и файлы, которые больше никому не принадлежат."
}

func deleteResultText(r *models.DeleteUserResult) string {
	s := r.Summary
	return "🗑️ <b>Пользователь удален</b>\n" +
		fmt.Sprintf("• email: <code>%s</code>\n", esc(r.Email)) +
		fmt.Sprintf("• user_id: <code>%s</code>\n", esc(r.UserID)) +
		fmt.Sprintf("• треков-кандидатов: <code>%d</code>\n", s.CandidateSongs) +
		fmt.Sprintf("• удалено треков: <code>%d</code>\n", s.DeletedSongs) +
		fmt.Sprintf("• удалено файлов: <code>%d</code>\n", s.DeletedFiles) +
		fmt.Sprintf("• ошибок удаления файлов: <code>%d</code>\n", s.FileDeleteErrors) +
		fmt.Sprintf("• удалено плейлистов: <code>%d</code>\n", s.DeletedPlaylists) +
		fmt.Sprintf("• удалено строк библиотеки: <code>%d</code>", s.DeletedLibraryRows)
}

var deployStatusIcons = map[models.DeployStatus]string{
	models.DeploySucceeded: "✅",
	models.DeployFailed:    "🚨",
	models.DeployTimedOut:  "⏳",
	models.DeployErrored:   "⚠️",
}

func formatDeployHistory(records []*models.DeployRecord) string {
	if len(records) == 0 {
		return "🚀 <b>История деплоев</b>\n\nДеплоев еще не было."
	}
	lines := []string{"🚀 <b>История деплоев</b>", ""}
	for _, r := range records {
		icon := deployStatusIcons[r.Status]
		if icon == "" {
			icon = "•"
		}
		who := r.Username
		if who == "" {
			who = fmt.Sprint(r.ChatID)
		}
		lines = append(lines, fmt.Sprintf("%s <code>%s</code> <b>%s</b> · %s · %s · %s",
			icon,
			r.StartedAt.UTC().Format("2006-01-02 15:04"),
			esc(r.Branch),
			esc(string(r.Status)),
			durafmt.Parse(r.Duration().Round(time.Second)).LimitFirstN(2).String(),
			esc(who),
		))
	}
	return strings.Join(lines, "\n")
}

func formatAlertHistory(records []*models.AlertRecord) string {
	if len(records) == 0 {
		return "🔔 <b>История алертов</b>\n\nАлертов еще не было."
	}
	lines := []string{"🔔 <b>История алертов</b>", ""}
	for _, r := range records {
		line := fmt.Sprintf("• <code>%s</code> <b>%s</b>", r.SentAt.UTC().Format("2006-01-02 15:04:05"), esc(string(r.Kind)))
		if r.IssueKey != "" {
			line += fmt.Sprintf(" <code>%s</code>", esc(r.IssueKey))
		}
		line += fmt.Sprintf(" (%d/%d)", r.Delivered, r.Recipients)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
