package handlers

import (
	"context"
	"io"

	"github.com/jmoiron/sqlx"

	appconfig "schoolbot/app/config"
	"schoolbot/app/conversation"
	"schoolbot/app/storage"
	"schoolbot/app/translate"
	"schoolbot/app/weather"
	"schoolbot/core/logger"
	tg "schoolbot/core/telegram"
	"schoolbot/core/telegram/commands"
	"schoolbot/core/telegram/router"
	"schoolbot/core/telegram/state"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// App assembles the bot: adapters, conversation machine, handlers and
// the command registry. It satisfies the cmd runner's TelegramApp.
type App struct {
	cfg   *appconfig.Config
	media *storage.MediaStore
	reg   *tg.Registry
	h     *Handlers
}

func NewApp(cfg *appconfig.Config, db *sqlx.DB) *App {
	core := cfg.CoreConfig()

	media := storage.NewMediaStore(core.Media.Dir)
	students := storage.NewStudentsRepo(db)
	machine := conversation.NewMachine(state.NewMemoryManager(), students, media)

	var ws WeatherService
	if core.Weather.APIKey != "" {
		ws = weather.NewClient(core.Weather, nil)
	}
	var ts TranslateService
	if core.Translate.APIKey != "" {
		ts = translate.NewClient(core.Translate, nil)
	}

	h := New(machine, ws, ts, media)

	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Начать работу с ботом",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "Получить помощь",
	})
	reg.RegisterCommand("/register", commands.Command{
		Handler:     h.Register,
		Description: "Зарегистрировать студента",
	})
	reg.RegisterCommand("/voice", commands.Command{
		Handler:     h.VoiceCommand,
		Description: "Отправить голосовое сообщение",
	})
	if ws != nil {
		reg.RegisterCommand("/weather", commands.Command{
			Handler:     h.Weather,
			Description: "Получить прогноз погоды",
		})
	}
	reg.RegisterCommand("/hello", commands.Command{
		Handler:     h.Hello,
		Description: "Поприветствовать",
		Hidden:      true,
		Aliases:     []string{BtnHello},
	})
	reg.RegisterCommand("/bye", commands.Command{
		Handler:     h.Bye,
		Description: "Попрощаться",
		Hidden:      true,
		Aliases:     []string{BtnBye},
	})

	if ts != nil {
		reg.SetTextFallback(h.TranslateFallback)
	} else {
		logger.TWire.Info("translate disabled",
			slog.String("event", "fallback.disabled"),
			slog.String("cause", "no api key"),
		)
	}

	return &App{cfg: cfg, media: media, reg: reg, h: h}
}

// TelegramRunOptions builds the run options consumed by the core runner.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.reg)
	routes = append(routes, router.MessageRoutes(a.h, a.reg, router.MessageOptions{
		Photo: a.h.SavePhoto,
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.reg,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			// The media store can only download files once the bot exists.
			a.media.SetOpener(botFileOpener{bot: rt.Bot})
			return nil
		},
	}, nil
}

type botFileOpener struct {
	bot *tele.Bot
}

func (o botFileOpener) OpenFile(_ context.Context, fileID string) (io.ReadCloser, error) {
	return o.bot.File(&tele.File{FileID: fileID})
}
