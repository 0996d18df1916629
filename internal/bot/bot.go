package bot

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"cloudtune-ops/internal/deploy"
	"cloudtune-ops/internal/service"

	"gopkg.in/telebot.v3"
)

// DeploySettings are the deploy options the bot checks before calling the runner.
type DeploySettings struct {
	Enabled bool
	Branch  string
}

type Bot struct {
	bot      *telebot.Bot
	service  *service.MonitoringService
	runtime  *service.Runtime
	runner   *deploy.Runner
	deploy   DeploySettings
	interval time.Duration
	menu     *telebot.ReplyMarkup
	ctx      context.Context
}

func NewBot(token string, svc *service.MonitoringService, runtime *service.Runtime, runner *deploy.Runner, deploySettings DeploySettings, interval time.Duration) (*Bot, error) {
	pref := telebot.Settings{Token: token, Poller: &telebot.LongPoller{Timeout: 10 * time.Second}}
	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}
	botInstance := &Bot{
		bot:      b,
		service:  svc,
		runtime:  runtime,
		runner:   runner,
		deploy:   deploySettings,
		interval: interval,
		menu:     menuKeyboard(),
		ctx:      context.Background(),
	}
	b.Use(botInstance.authMiddleware())
	return botInstance, nil
}

// Sender exposes the underlying client for the alert broadcaster.
func (b *Bot) Sender() Sender {
	return b.bot
}

// Start polls Telegram until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx
	b.registerHandlers()
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	log.Println("Telegram bot starting...")
	b.bot.Start()
	log.Println("Telegram bot stopped.")
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleHelp)
	b.bot.Handle("/help", b.handleHelp)
	for _, kind := range service.ReportKinds {
		b.bot.Handle("/"+kind, b.handleReport(kind))
	}
	b.bot.Handle("/users", b.handleUsers)
	b.bot.Handle("/user", b.handleUser)
	b.bot.Handle("/snapshot", b.handleSnapshot)
	b.bot.Handle("/deploy", b.handleDeploy)
	b.bot.Handle("/deploys", b.handleDeploys)
	b.bot.Handle("/alerts", b.handleAlerts)
	b.bot.Handle("/delete_user", b.handleDeleteUser)
	b.bot.Handle(telebot.OnCallback, b.handleCallback)
	b.bot.Handle(telebot.OnText, b.handleTextMessage)
}

func (b *Bot) authMiddleware() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}
			if !b.runtime.IsChatAllowed(chat.ID) {
				log.Printf("Rejected update from chat %d", chat.ID)
				if c.Callback() != nil {
					return c.Respond(alert("Доступ запрещен"))
				}
				return b.reply(c, "⛔ <b>Доступ запрещен для этого чата</b>")
			}
			b.runtime.RegisterChat(chat.ID)
			c.Set("ctx", b.ctx)
			return next(c)
		}
	}
}

func ctxOf(c telebot.Context) context.Context {
	if ctx, ok := c.Get("ctx").(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func alert(text string) *telebot.CallbackResponse {
	return &telebot.CallbackResponse{Text: text, ShowAlert: true}
}

// reply sends an HTML message with the main menu keyboard.
func (b *Bot) reply(c telebot.Context, text string) error {
	return c.Send(text, b.menu, telebot.ModeHTML, telebot.NoPreview)
}

func (b *Bot) sendInline(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	if markup == nil {
		return c.Send(text, telebot.ModeHTML, telebot.NoPreview)
	}
	return c.Send(text, markup, telebot.ModeHTML, telebot.NoPreview)
}

func (b *Bot) edit(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	opts := []interface{}{telebot.ModeHTML, telebot.NoPreview}
	if markup != nil {
		opts = append(opts, markup)
	}
	err := c.Edit(text, opts...)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (b *Bot) handleHelp(c telebot.Context) error {
	return b.reply(c, formatHelp(b.interval))
}

func (b *Bot) handleReport(kind string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return b.sendReport(c, kind)
	}
}

func (b *Bot) sendReport(c telebot.Context, kind string) error {
	text, err := b.service.Report(ctxOf(c), kind)
	if err != nil {
		log.Printf("Failed to fetch %s report: %v", kind, err)
		return b.reply(c, errorText("Ошибка мониторинга", err))
	}
	return b.reply(c, formatMonitoringMessage(kind, text))
}

func (b *Bot) handleSnapshot(c telebot.Context) error {
	snap, err := b.service.Snapshot(ctxOf(c))
	if err != nil {
		log.Printf("Failed to fetch snapshot: %v", err)
		return b.reply(c, errorText("Ошибка загрузки snapshot", err))
	}
	return b.reply(c, formatSnapshot(snap))
}

func (b *Bot) handleUsers(c telebot.Context) error {
	page, err := b.service.UsersPage(ctxOf(c), 1)
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		return b.reply(c, errorText("Ошибка загрузки списка пользователей", err))
	}
	return b.sendInline(c, formatUsersPage(page), usersKeyboard(page.Page, page.TotalPages))
}

func (b *Bot) handleUsersPage(c telebot.Context) error {
	page, err := b.service.UsersPage(ctxOf(c), parseUsersPage(c.Data()))
	if err == nil {
		err = b.edit(c, formatUsersPage(page), usersKeyboard(page.Page, page.TotalPages))
	}
	if err != nil {
		log.Printf("Failed to switch users page: %v", err)
		_ = c.Respond(alert("Ошибка загрузки страницы"))
		return b.reply(c, errorText("Ошибка загрузки страницы пользователей", err))
	}
	return c.Respond()
}

func (b *Bot) handleUser(c telebot.Context) error {
	email := strings.TrimSpace(strings.Join(c.Args(), " "))
	if email == "" {
		return b.reply(c, "Использование: <code>/user user@example.com</code>")
	}
	return b.sendUserHome(c, email)
}

func (b *Bot) sendUserHome(c telebot.Context, email string) error {
	user, token, err := b.service.FindUser(ctxOf(c), email)
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		return b.reply(c, "⚠️ <b>Неверный формат email</b>\nИспользуйте: <code>/user user@example.com</code>")
	case errors.Is(err, service.ErrUserNotFound):
		return b.reply(c, userNotFoundText(strings.ToLower(strings.TrimSpace(email))))
	case err != nil:
		log.Printf("Failed to load user card for %s: %v", email, err)
		return b.reply(c, errorText("Ошибка загрузки пользователя", err))
	}
	return b.sendInline(c, formatUserHome(user), userHomeKeyboard(token))
}

func (b *Bot) handleUserCallback(c telebot.Context) error {
	cb, err := parseUserCallback(c.Data())
	if err != nil {
		return c.Respond(alert("Некорректная кнопка"))
	}
	ctx := ctxOf(c)

	user, email, err := b.service.UserByToken(ctx, cb.Token)
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		return c.Respond(alert("Сессия устарела. Выполните /user <email>"))
	case errors.Is(err, service.ErrUserNotFound):
		if err := b.edit(c, userNotFoundText(email), nil); err != nil {
			return b.userCallbackFailed(c, err)
		}
		return c.Respond()
	case err != nil:
		return b.userCallbackFailed(c, err)
	}

	var (
		text   string
		markup *telebot.ReplyMarkup
	)
	switch cb.Action {
	case "home":
		text, markup = formatUserHome(user), userHomeKeyboard(cb.Token)
	case "about":
		summary, sumErr := b.service.StorageSummary(ctx, user.ID)
		text, markup, err = formatUserAbout(user, summary), userAboutKeyboard(cb.Token), sumErr
	case "files":
		summary, sumErr := b.service.StorageSummary(ctx, user.ID)
		text, markup, err = formatUserFiles(summary), userFilesKeyboard(cb.Token), sumErr
	case "tracks":
		page, pageErr := b.service.TracksPage(ctx, user.ID, cb.Page)
		text, markup, err = formatTracksPage(page), userListKeyboard(cb.Token, "tracks", page.Page, page.TotalPages), pageErr
	case "playlists":
		total, countErr := b.service.PlaylistCount(ctx, user.ID)
		text, markup, err = formatUserPlaylists(total), userPlaylistsKeyboard(cb.Token), countErr
	case "playlist_items":
		page, pageErr := b.service.PlaylistsPage(ctx, user.ID, cb.Page)
		text, markup, err = formatPlaylistsPage(page), userListKeyboard(cb.Token, "playlist_items", page.Page, page.TotalPages), pageErr
	default:
		return c.Respond(alert("Неизвестное действие"))
	}
	if err == nil {
		err = b.edit(c, text, markup)
	}
	if err != nil {
		return b.userCallbackFailed(c, err)
	}
	return c.Respond()
}

func (b *Bot) userCallbackFailed(c telebot.Context, err error) error {
	log.Printf("User callback %q failed: %v", c.Data(), err)
	_ = c.Respond(alert("Ошибка загрузки"))
	return b.reply(c, errorText("Ошибка пользовательской сводки", err))
}

func (b *Bot) handleDeploy(c telebot.Context) error {
	if !b.runtime.IsDeployChatAllowed(c.Chat().ID) {
		return b.reply(c, "⛔ <b>Деплой запрещен для этого чата</b>")
	}
	if !b.deploy.Enabled {
		return b.reply(c, "⚠️ <b>Деплой отключен (DEPLOY_ENABLED=false)</b>")
	}
	opts := b.runner.Options()
	if opts.RepoURL == "" {
		return b.reply(c, "🚨 <b>DEPLOY_REPO_URL не задан</b>\nЗадайте URL репозитория в .env бота.")
	}

	branch := b.deploy.Branch
	if args := c.Args(); len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		branch = strings.TrimSpace(args[0])
	}

	if b.runner.Running() {
		return b.reply(c, "⏳ <b>Деплой уже выполняется</b>")
	}
	if err := b.reply(c, deployStartText(branch, opts)); err != nil {
		log.Printf("Failed to send deploy notice: %v", err)
	}

	req := deploy.Request{ChatID: c.Chat().ID, Branch: branch}
	if c.Sender() != nil {
		req.Username = c.Sender().Username
	}
	result, err := b.runner.Run(ctxOf(c), req)
	switch {
	case errors.Is(err, deploy.ErrDeployInProgress):
		return b.reply(c, "⏳ <b>Деплой уже выполняется</b>")
	case err != nil:
		log.Printf("Deploy of %s failed to run: %v", branch, err)
		return b.reply(c, errorText("Ошибка запуска деплоя", err))
	}
	log.Printf("Deploy of %s finished with code %d in %s", branch, result.ExitCode, result.Duration)
	return b.reply(c, deployResultText(result))
}

func (b *Bot) handleDeploys(c telebot.Context) error {
	records, err := b.service.RecentDeploys(ctxOf(c), historyLimit)
	if err != nil {
		return b.reply(c, errorText("Ошибка загрузки истории деплоев", err))
	}
	return b.reply(c, formatDeployHistory(records))
}

func (b *Bot) handleAlerts(c telebot.Context) error {
	records, err := b.service.RecentAlerts(ctxOf(c), historyLimit)
	if err != nil {
		return b.reply(c, errorText("Ошибка загрузки истории алертов", err))
	}
	return b.reply(c, formatAlertHistory(records))
}

func (b *Bot) handleDeleteUser(c telebot.Context) error {
	if !b.runtime.IsDeployChatAllowed(c.Chat().ID) {
		return b.reply(c, "⛔ <b>Удаление пользователей запрещено для этого чата</b>")
	}
	raw := strings.TrimSpace(strings.Join(c.Args(), " "))
	if raw == "" {
		return b.reply(c, "Использование: <code>/delete_user user@example.com</code>")
	}
	email, token, err := b.service.OpenSession(raw)
	if err != nil {
		return b.reply(c, "⚠️ <b>Неверный формат email</b>\nИспользуйте: <code>/delete_user user@example.com</code>")
	}
	return b.sendInline(c, deleteConfirmText(email), deleteConfirmKeyboard(token))
}

func (b *Bot) handleDeleteCallback(c telebot.Context) error {
	if !b.runtime.IsDeployChatAllowed(c.Chat().ID) {
		return c.Respond(alert("Доступ запрещен"))
	}
	action, token, ok := strings.Cut(strings.TrimPrefix(c.Data(), deletePrefix), ":")
	if !ok || token == "" {
		return c.Respond(alert("Некорректная кнопка"))
	}
	email, err := b.service.ResolveSession(token)
	if err != nil {
		return c.Respond(alert("Сессия устарела. Выполните /delete_user <email>"))
	}

	switch action {
	case "cancel":
		if err := b.edit(c, "↩️ Удаление отменено.", nil); err != nil {
			log.Printf("Failed to edit delete confirmation: %v", err)
		}
		return c.Respond()
	case "confirm":
	default:
		return c.Respond(alert("Неизвестное действие"))
	}

	result, err := b.service.DeleteUser(ctxOf(c), email)
	text := ""
	if err != nil {
		log.Printf("Failed to delete user %s: %v", email, err)
		text = errorText("Ошибка удаления пользователя", err)
	} else {
		log.Printf("User %s deleted by chat %d", email, c.Chat().ID)
		text = deleteResultText(result)
	}
	if err := b.edit(c, text, nil); err != nil {
		log.Printf("Failed to edit delete confirmation: %v", err)
		return b.reply(c, text)
	}
	return c.Respond()
}

func (b *Bot) handleCallback(c telebot.Context) error {
	data := c.Data()
	switch {
	case strings.HasPrefix(data, usersPagePrefix):
		return b.handleUsersPage(c)
	case strings.HasPrefix(data, userPrefix):
		return b.handleUserCallback(c)
	case strings.HasPrefix(data, deletePrefix):
		return b.handleDeleteCallback(c)
	default:
		return c.Respond()
	}
}

func (b *Bot) handleTextMessage(c telebot.Context) error {
	text := strings.TrimSpace(c.Text())

	switch text {
	case btnHelp:
		return b.handleHelp(c)
	case btnUsers:
		return b.handleUsers(c)
	case btnSnapshot:
		return b.handleSnapshot(c)
	case btnDeploy:
		return b.handleDeploy(c)
	}
	if b.service.LooksLikeEmail(text) {
		return b.sendUserHome(c, text)
	}
	if kind, ok := buttonReports[text]; ok {
		return b.sendReport(c, kind)
	}
	return b.reply(c, "🤔 <b>Не понял команду</b>\nИспользуйте кнопки ниже или /help")
}
