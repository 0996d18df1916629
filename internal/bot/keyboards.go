package bot

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"
)

// Menu buttons
const (
	btnStatus      = "📊 Статус"
	btnStorage     = "💾 Хранилище"
	btnConnections = "🔌 Подключения"
	btnRuntime     = "⚙️ Рантайм"
	btnUsers       = "👥 Пользователи"
	btnSnapshot    = "🧪 Снимок"
	btnAll         = "🧾 Полный отчет"
	btnDeploy      = "🚀 Деплой"
	btnHelp        = "❓ Помощь"
)

// Callback prefixes
const (
	usersPagePrefix = "users_page:"
	userPrefix      = "user:"
	deletePrefix    = "del:"
)

var buttonReports = map[string]string{
	btnStatus:      "status",
	btnStorage:     "storage",
	btnConnections: "connections",
	btnRuntime:     "runtime",
	btnAll:         "all",
}

func menuKeyboard() *telebot.ReplyMarkup {
	row := func(texts ...string) []telebot.ReplyButton {
		buttons := make([]telebot.ReplyButton, 0, len(texts))
		for _, t := range texts {
			buttons = append(buttons, telebot.ReplyButton{Text: t})
		}
		return buttons
	}
	return &telebot.ReplyMarkup{
		ReplyKeyboard: [][]telebot.ReplyButton{
			row(btnStatus, btnStorage),
			row(btnConnections, btnRuntime),
			row(btnUsers, btnSnapshot),
			row(btnAll, btnDeploy),
			row(btnHelp),
		},
		ResizeKeyboard: true,
		Placeholder:    "Выберите метрику",
	}
}

func inline(rows ...[]telebot.InlineButton) *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

// usersKeyboard returns nil when there is a single page.
func usersKeyboard(page, totalPages int) *telebot.ReplyMarkup {
	if totalPages <= 1 {
		return nil
	}
	var row []telebot.InlineButton
	if page > 1 {
		row = append(row, telebot.InlineButton{Text: "⬅️", Data: usersPagePrefix + strconv.Itoa(page-1)})
	}
	if page < totalPages {
		row = append(row, telebot.InlineButton{Text: "➡️", Data: usersPagePrefix + strconv.Itoa(page+1)})
	}
	if len(row) == 0 {
		return nil
	}
	return inline(row)
}

func userData(action, token string, page ...int) string {
	data := userPrefix + action + ":" + token
	if len(page) > 0 {
		data += ":" + strconv.Itoa(page[0])
	}
	return data
}

func userHomeKeyboard(token string) *telebot.ReplyMarkup {
	return inline([]telebot.InlineButton{{Text: "О пользователе", Data: userData("about", token)}})
}

func userAboutKeyboard(token string) *telebot.ReplyMarkup {
	return inline([]telebot.InlineButton{
		{Text: "Домой", Data: userData("home", token)},
		{Text: "Файлы", Data: userData("files", token)},
		{Text: "Плейлисты", Data: userData("playlists", token)},
	})
}

func userFilesKeyboard(token string) *telebot.ReplyMarkup {
	return inline([]telebot.InlineButton{
		{Text: "Треки", Data: userData("tracks", token, 1)},
		{Text: "Домой", Data: userData("about", token)},
	})
}

func userPlaylistsKeyboard(token string) *telebot.ReplyMarkup {
	return inline([]telebot.InlineButton{
		{Text: "Список", Data: userData("playlist_items", token, 1)},
		{Text: "Домой", Data: userData("about", token)},
	})
}

func userListKeyboard(token, action string, page, totalPages int) *telebot.ReplyMarkup {
	var row []telebot.InlineButton
	if page > 1 {
		row = append(row, telebot.InlineButton{Text: "⬅️", Data: userData(action, token, page-1)})
	}
	row = append(row, telebot.InlineButton{Text: "Домой", Data: userData("about", token)})
	if page < totalPages {
		row = append(row, telebot.InlineButton{Text: "➡️", Data: userData(action, token, page+1)})
	}
	return inline(row)
}

func deleteConfirmKeyboard(token string) *telebot.ReplyMarkup {
	return inline([]telebot.InlineButton{
		{Text: "🗑️ Удалить", Data: deletePrefix + "confirm:" + token},
		{Text: "Отмена", Data: deletePrefix + "cancel:" + token},
	})
}

// userCallback is a parsed "user:<action>:<token>[:<page>]" button.
type userCallback struct {
	Action string
	Token  string
	Page   int
}

func parseUserCallback(data string) (userCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[0]+":" != userPrefix || parts[2] == "" {
		return userCallback{}, fmt.Errorf("malformed user callback %q", data)
	}
	cb := userCallback{Action: parts[1], Token: parts[2], Page: 1}
	if len(parts) >= 4 {
		if page, err := strconv.Atoi(parts[3]); err == nil {
			cb.Page = max(page, 1)
		}
	}
	return cb, nil
}

func parseUsersPage(data string) int {
	page, err := strconv.Atoi(strings.TrimPrefix(data, usersPagePrefix))
	if err != nil {
		return 1
	}
	return max(page, 1)
}
