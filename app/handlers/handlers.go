package handlers

import (
	"context"
	"fmt"
	"strings"

	"schoolbot/app/conversation"
	"schoolbot/app/weather"
	"schoolbot/core/logger"
	tghelpers "schoolbot/core/telegram/helpers"
	"schoolbot/core/telegram/keyboard"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Static replies. The bot speaks Russian to its users.
const (
	MsgStart = "Привет! Я школьный бот-помощник. Используйте команду /weather для получения прогноза погоды, /register для регистрации студента и /voice для отправки голосового сообщения."
	MsgHelp  = "Доступные команды:\n" +
		"/start - Начать работу с ботом\n" +
		"/help - Получить помощь\n" +
		"/weather [город] - Получить прогноз погоды\n" +
		"/register - Зарегистрировать студента\n" +
		"/voice - Отправить голосовое сообщение"

	MsgWeatherUnavailable   = "Не удалось получить данные о погоде. Попробуйте позже."
	MsgTranslateUnavailable = "Ошибка перевода. Попробуйте позже."
	MsgFlowFailed           = "Не удалось сохранить данные. Попробуйте позже."
	MsgPhotoSaved           = "Фото сохранено!"
	MsgPhotoFailed          = "Не удалось сохранить фото. Попробуйте позже."
)

// Keyboard button labels handled as command aliases.
const (
	BtnHello = "Привет"
	BtnBye   = "Пока"
)

// WeatherService resolves current conditions for a city.
type WeatherService interface {
	DefaultCity() string
	Lookup(ctx context.Context, city string) (weather.Report, error)
}

// TranslateService translates free-form text.
type TranslateService interface {
	Translate(ctx context.Context, text string) (string, error)
}

// PhotoArchive stores photos arriving outside of any flow.
type PhotoArchive interface {
	SavePhoto(ctx context.Context, file conversation.FileRef) (string, error)
}

// Handlers binds the conversation machine and the external adapters to
// telebot endpoints.
type Handlers struct {
	machine   *conversation.Machine
	weather   WeatherService
	translate TranslateService
	photos    PhotoArchive
}

func New(machine *conversation.Machine, ws WeatherService, ts TranslateService, photos PhotoArchive) *Handlers {
	return &Handlers{
		machine:   machine,
		weather:   ws,
		translate: ts,
		photos:    photos,
	}
}

// MainKeyboard is the persistent reply keyboard shown on /start.
func MainKeyboard() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{BtnHello, BtnBye})
}

func (h *Handlers) Start(c tele.Context) error {
	return tghelpers.SendKeyboard(c, MsgStart, MainKeyboard())
}

func (h *Handlers) Help(c tele.Context) error {
	return tghelpers.SendText(c, MsgHelp)
}

func (h *Handlers) Hello(c tele.Context) error {
	return tghelpers.SendText(c, fmt.Sprintf("Привет, %s!", senderFirstName(c)))
}

func (h *Handlers) Bye(c tele.Context) error {
	return tghelpers.SendText(c, fmt.Sprintf("До свидания, %s!", senderFirstName(c)))
}

// Weather answers /weather [city]; without an argument the configured
// default city is used.
func (h *Handlers) Weather(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	city := strings.TrimSpace(strings.Join(c.Args(), " "))
	if city == "" {
		city = h.weather.DefaultCity()
	}

	report, err := h.weather.Lookup(ctx, city)
	if err != nil {
		return tghelpers.SendText(c, MsgWeatherUnavailable)
	}
	return tghelpers.SendText(c, report.Format())
}

// Register starts (or restarts) the registration flow.
func (h *Handlers) Register(c tele.Context) error {
	return h.step(c, conversation.Event{Kind: conversation.KindCommand, Command: conversation.CommandRegister}, nil)
}

// VoiceCommand starts (or restarts) the voice capture flow.
func (h *Handlers) VoiceCommand(c tele.Context) error {
	return h.step(c, conversation.Event{Kind: conversation.KindCommand, Command: conversation.CommandVoice}, nil)
}

// InProgress reports whether the sender has an active flow; it makes
// Handlers satisfy the router's FSM interface.
func (h *Handlers) InProgress(userID int64) bool {
	return h.machine.InProgress(userID)
}

// HandleText feeds in-flow text to the machine.
func (h *Handlers) HandleText(c tele.Context) error {
	return h.step(c, conversation.Event{Kind: conversation.KindText, Text: c.Text()}, nil)
}

// HandleVoice feeds an in-flow voice note to the machine.
func (h *Handlers) HandleVoice(c tele.Context) error {
	voice := c.Message().Voice
	if voice == nil {
		return nil
	}
	ev := conversation.Event{
		Kind: conversation.KindVoice,
		File: conversation.FileRef{ID: voice.FileID, UniqueID: voice.UniqueID},
	}
	return h.step(c, ev, voice)
}

// HandlePhoto feeds an in-flow photo to the machine.
func (h *Handlers) HandlePhoto(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}
	ev := conversation.Event{
		Kind: conversation.KindPhoto,
		File: conversation.FileRef{ID: photo.FileID, UniqueID: photo.UniqueID},
	}
	return h.step(c, ev, nil)
}

func (h *Handlers) step(c tele.Context, ev conversation.Event, echo *tele.Voice) error {
	ctx := tghelpers.BuildContext(c)
	res, err := h.machine.Step(ctx, c.Sender().ID, ev)
	if err != nil {
		return tghelpers.SendText(c, MsgFlowFailed)
	}
	if !res.Handled {
		return nil
	}
	if res.EchoVoice && echo != nil {
		if err := tghelpers.SendVoice(c, echo); err != nil {
			return err
		}
	}
	if res.Reply != "" {
		return tghelpers.SendText(c, res.Reply)
	}
	return nil
}

// TranslateFallback handles free-form text outside of flows: the text
// is translated and sent back. Unknown slash commands are dropped.
func (h *Handlers) TranslateFallback(c tele.Context) error {
	text := c.Text()
	if strings.HasPrefix(text, "/") {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	translated, err := h.translate.Translate(ctx, text)
	if err != nil {
		return tghelpers.SendText(c, MsgTranslateUnavailable)
	}
	return tghelpers.SendText(c, translated)
}

// SavePhoto archives photos arriving outside of any flow to img/.
func (h *Handlers) SavePhoto(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	if _, err := h.photos.SavePhoto(ctx, conversation.FileRef{ID: photo.FileID, UniqueID: photo.UniqueID}); err != nil {
		logger.SVCMedia.LogAttrs(ctx, slog.LevelError, "photo archive failed",
			slog.String("event", "archive.failed"),
			slog.String("file_id", photo.FileID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return tghelpers.SendText(c, MsgPhotoFailed)
	}
	return tghelpers.SendText(c, MsgPhotoSaved)
}

func senderFirstName(c tele.Context) string {
	if u := c.Sender(); u != nil && u.FirstName != "" {
		return u.FirstName
	}
	return "друг"
}
