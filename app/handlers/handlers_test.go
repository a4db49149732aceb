package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"schoolbot/app/conversation"
	"schoolbot/app/weather"
	"schoolbot/core/logger"
	"schoolbot/core/telegram/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

// stubContext implements the slice of tele.Context the handlers touch.
type stubContext struct {
	tele.Context

	sender  *tele.User
	message *tele.Message
	args    []string
	store   map[string]interface{}

	sent []interface{}
}

func newStubContext(userID int64, text string) *stubContext {
	return &stubContext{
		sender: &tele.User{ID: userID, FirstName: "Тест"},
		message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
		},
		store: make(map[string]interface{}),
	}
}

func (s *stubContext) Sender() *tele.User     { return s.sender }
func (s *stubContext) Chat() *tele.Chat       { return s.message.Chat }
func (s *stubContext) Message() *tele.Message { return s.message }
func (s *stubContext) Text() string           { return s.message.Text }
func (s *stubContext) Args() []string         { return s.args }
func (s *stubContext) Update() tele.Update    { return tele.Update{ID: 1, Message: s.message} }

func (s *stubContext) Get(key string) interface{} { return s.store[key] }
func (s *stubContext) Set(key string, v interface{}) {
	s.store[key] = v
}

func (s *stubContext) Send(what interface{}, _ ...interface{}) error {
	s.sent = append(s.sent, what)
	return nil
}

func (s *stubContext) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.sent)
	text, ok := s.sent[len(s.sent)-1].(string)
	require.True(t, ok, "last sent item is not text: %#v", s.sent[len(s.sent)-1])
	return text
}

type stubWeather struct {
	report weather.Report
	err    error

	gotCity string
}

func (s *stubWeather) DefaultCity() string { return "Москва" }

func (s *stubWeather) Lookup(_ context.Context, city string) (weather.Report, error) {
	s.gotCity = city
	if s.err != nil {
		return weather.Report{}, s.err
	}
	rep := s.report
	rep.City = city
	return rep, nil
}

type stubTranslate struct {
	out string
	err error
}

func (s *stubTranslate) Translate(_ context.Context, _ string) (string, error) {
	return s.out, s.err
}

type stubPhotos struct {
	saved []conversation.FileRef
	err   error
}

func (s *stubPhotos) SavePhoto(_ context.Context, file conversation.FileRef) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, file)
	return "img/" + file.UniqueID + ".jpg", nil
}

type failingStudents struct{}

func (failingStudents) AddStudent(context.Context, conversation.Student) (int64, error) {
	return 0, errors.New("db down")
}

type okStudents struct{}

func (okStudents) AddStudent(context.Context, conversation.Student) (int64, error) {
	return 1, nil
}

type noVoices struct{}

func (noVoices) SaveVoice(context.Context, conversation.FileRef) (string, error) {
	return "", errors.New("unexpected voice save")
}

func newTestHandlers(students conversation.StudentStore, ws WeatherService, ts TranslateService, photos PhotoArchive) *Handlers {
	machine := conversation.NewMachine(state.NewMemoryManager(), students, noVoices{})
	return New(machine, ws, ts, photos)
}

func TestWeatherUsesDefaultCityWithoutArgs(t *testing.T) {
	ws := &stubWeather{report: weather.Report{TempC: -2, Humidity: 70, Description: "Снег"}}
	h := newTestHandlers(okStudents{}, ws, nil, nil)

	c := newStubContext(1, "/weather")
	require.NoError(t, h.Weather(c))

	assert.Equal(t, "Москва", ws.gotCity)
	assert.Contains(t, c.lastText(t), "Погода в Москва:")
}

func TestWeatherPassesCityArgument(t *testing.T) {
	ws := &stubWeather{report: weather.Report{TempC: 3, Humidity: 60, Description: "Дождь"}}
	h := newTestHandlers(okStudents{}, ws, nil, nil)

	c := newStubContext(1, "/weather Нижний Новгород")
	c.args = []string{"Нижний", "Новгород"}
	require.NoError(t, h.Weather(c))

	assert.Equal(t, "Нижний Новгород", ws.gotCity)
}

func TestWeatherFailureSendsApology(t *testing.T) {
	ws := &stubWeather{err: errors.New("provider down")}
	h := newTestHandlers(okStudents{}, ws, nil, nil)

	c := newStubContext(1, "/weather")
	require.NoError(t, h.Weather(c))
	assert.Equal(t, MsgWeatherUnavailable, c.lastText(t))
}

func TestTranslateFallbackRepliesWithTranslation(t *testing.T) {
	h := newTestHandlers(okStudents{}, nil, &stubTranslate{out: "hello"}, nil)

	c := newStubContext(1, "привет")
	require.NoError(t, h.TranslateFallback(c))
	assert.Equal(t, "hello", c.lastText(t))
}

func TestTranslateFallbackDropsUnknownCommands(t *testing.T) {
	h := newTestHandlers(okStudents{}, nil, &stubTranslate{out: "should not be sent"}, nil)

	c := newStubContext(1, "/unknown")
	require.NoError(t, h.TranslateFallback(c))
	assert.Empty(t, c.sent)
}

func TestTranslateFallbackFailureSendsApology(t *testing.T) {
	h := newTestHandlers(okStudents{}, nil, &stubTranslate{err: errors.New("quota")}, nil)

	c := newStubContext(1, "привет")
	require.NoError(t, h.TranslateFallback(c))
	assert.Equal(t, MsgTranslateUnavailable, c.lastText(t))
}

func TestRegistrationFlowThroughHandlers(t *testing.T) {
	h := newTestHandlers(okStudents{}, nil, nil, nil)
	const userID = int64(55)

	c := newStubContext(userID, "/register")
	require.NoError(t, h.Register(c))
	assert.Equal(t, conversation.PromptName, c.lastText(t))
	assert.True(t, h.InProgress(userID))

	c = newStubContext(userID, "Маша")
	require.NoError(t, h.HandleText(c))
	assert.Equal(t, conversation.PromptAge, c.lastText(t))

	c = newStubContext(userID, "10")
	require.NoError(t, h.HandleText(c))
	assert.Equal(t, conversation.PromptGrade, c.lastText(t))

	c = newStubContext(userID, "3А")
	require.NoError(t, h.HandleText(c))
	assert.Equal(t, fmt.Sprintf(conversation.MsgRegistered, "Маша", "10", "3А"), c.lastText(t))
	assert.False(t, h.InProgress(userID))
}

func TestFlowFailureSendsApology(t *testing.T) {
	h := newTestHandlers(failingStudents{}, nil, nil, nil)
	const userID = int64(56)

	require.NoError(t, h.Register(newStubContext(userID, "/register")))
	require.NoError(t, h.HandleText(newStubContext(userID, "Имя")))
	require.NoError(t, h.HandleText(newStubContext(userID, "9")))

	c := newStubContext(userID, "2Б")
	require.NoError(t, h.HandleText(c))
	assert.Equal(t, MsgFlowFailed, c.lastText(t))
	assert.False(t, h.InProgress(userID))
}

func TestSavePhotoRepliesWithConfirmation(t *testing.T) {
	photos := &stubPhotos{}
	h := newTestHandlers(okStudents{}, nil, nil, photos)

	c := newStubContext(1, "")
	c.message.Photo = &tele.Photo{File: tele.File{FileID: "p1", UniqueID: "u1"}}
	require.NoError(t, h.SavePhoto(c))

	assert.Equal(t, MsgPhotoSaved, c.lastText(t))
	require.Len(t, photos.saved, 1)
	assert.Equal(t, "u1", photos.saved[0].UniqueID)
}

func TestSavePhotoFailureSendsApology(t *testing.T) {
	h := newTestHandlers(okStudents{}, nil, nil, &stubPhotos{err: errors.New("disk full")})

	c := newStubContext(1, "")
	c.message.Photo = &tele.Photo{File: tele.File{FileID: "p1", UniqueID: "u1"}}
	require.NoError(t, h.SavePhoto(c))
	assert.Equal(t, MsgPhotoFailed, c.lastText(t))
}

func TestMainKeyboardHasGreetingButtons(t *testing.T) {
	kb := MainKeyboard()
	require.Len(t, kb.ReplyKeyboard, 1)
	require.Len(t, kb.ReplyKeyboard[0], 2)
	assert.Equal(t, BtnHello, kb.ReplyKeyboard[0][0].Text)
	assert.Equal(t, BtnBye, kb.ReplyKeyboard[0][1].Text)
}
