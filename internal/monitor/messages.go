package monitor

import (
	"fmt"
	"html"
	"time"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func startedText(at time.Time, healthPath string, up bool, detail string) string {
	status := "DOWN"
	if up {
		status = "UP"
	}
	return fmt.Sprintf(
		"✅ <b>Мониторинг запущен</b>\n"+
			"🕒 <code>%s</code>\n"+
			"🔎 Проверка: <code>%s</code>\n"+
			"📡 Статус backend: <b>%s</b>\n"+
			"ℹ️ Детали: <code>%s</code>",
		formatTime(at), html.EscapeString(healthPath), status, html.EscapeString(detail),
	)
}

func downText(at time.Time, healthPath, detail string) string {
	return fmt.Sprintf(
		"🚨 <b>CloudTune Alert: BACKEND НЕДОСТУПЕН</b>\n"+
			"🕒 <code>%s</code>\n"+
			"🔎 Проверка: <code>%s</code>\n"+
			"ℹ️ Детали: <code>%s</code>",
		formatTime(at), html.EscapeString(healthPath), html.EscapeString(detail),
	)
}

func recoveredText(at time.Time, healthPath, detail string) string {
	return fmt.Sprintf(
		"✅ <b>CloudTune Alert: BACKEND ВОССТАНОВЛЕН</b>\n"+
			"🕒 <code>%s</code>\n"+
			"🔎 Проверка: <code>%s</code>\n"+
			"ℹ️ Детали: <code>%s</code>",
		formatTime(at), html.EscapeString(healthPath), html.EscapeString(detail),
	)
}

func exceededText(at time.Time, issue string) string {
	return fmt.Sprintf(
		"⚠️ <b>Порог мониторинга превышен</b>\n"+
			"🕒 <code>%s</code>\n"+
			"ℹ️ <code>%s</code>",
		formatTime(at), html.EscapeString(issue),
	)
}

func clearedText(at time.Time, key string) string {
	return fmt.Sprintf(
		"✅ <b>Порог мониторинга восстановлен</b>\n"+
			"🕒 <code>%s</code>\n"+
			"ℹ️ <code>%s</code>",
		formatTime(at), html.EscapeString(key),
	)
}

func monitoringErrorText(at time.Time, err error) string {
	return fmt.Sprintf(
		"⚠️ <b>Ошибка расширенного мониторинга</b>\n"+
			"🕒 <code>%s</code>\n"+
			"ℹ️ <code>%s</code>",
		formatTime(at), html.EscapeString(err.Error()),
	)
}
