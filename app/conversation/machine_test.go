package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"schoolbot/core/logger"
	"schoolbot/core/telegram/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type recordedStudent struct {
	Student
	id int64
}

type fakeStudents struct {
	rows   []recordedStudent
	nextID int64
	err    error
}

func (f *fakeStudents) AddStudent(_ context.Context, st Student) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	f.rows = append(f.rows, recordedStudent{Student: st, id: f.nextID})
	return f.nextID, nil
}

type fakeVoices struct {
	saved []FileRef
	err   error
}

func (f *fakeVoices) SaveVoice(_ context.Context, file FileRef) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, file)
	return "voice/" + file.UniqueID + ".ogg", nil
}

func newTestMachine() (*Machine, *fakeStudents, *fakeVoices, state.Manager) {
	sessions := state.NewMemoryManager()
	students := &fakeStudents{}
	voices := &fakeVoices{}
	return NewMachine(sessions, students, voices), students, voices, sessions
}

func cmd(name string) Event { return Event{Kind: KindCommand, Command: name} }
func text(s string) Event   { return Event{Kind: KindText, Text: s} }
func voice(id string) Event {
	return Event{Kind: KindVoice, File: FileRef{ID: id, UniqueID: "u_" + id}}
}

func TestRegistrationHappyPath(t *testing.T) {
	m, students, _, sessions := newTestMachine()
	ctx := context.Background()
	const userID = int64(101)

	res, err := m.Step(ctx, userID, cmd(CommandRegister))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, PromptName, res.Reply)
	assert.Equal(t, StateRegWaitingName, sessions.GetState(userID))

	res, err = m.Step(ctx, userID, text("Иван"))
	require.NoError(t, err)
	assert.Equal(t, PromptAge, res.Reply)

	res, err = m.Step(ctx, userID, text("12"))
	require.NoError(t, err)
	assert.Equal(t, PromptGrade, res.Reply)

	res, err = m.Step(ctx, userID, text("6Б"))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(MsgRegistered, "Иван", "12", "6Б"), res.Reply)

	require.Len(t, students.rows, 1)
	assert.Equal(t, Student{Name: "Иван", Age: "12", Grade: "6Б"}, students.rows[0].Student)
	assert.False(t, sessions.InProgress(userID))
}

func TestRegistrationAgeUnvalidated(t *testing.T) {
	m, students, _, _ := newTestMachine()
	ctx := context.Background()
	const userID = int64(7)

	_, err := m.Step(ctx, userID, cmd(CommandRegister))
	require.NoError(t, err)
	_, err = m.Step(ctx, userID, text("Оля"))
	require.NoError(t, err)
	_, err = m.Step(ctx, userID, text("двенадцать"))
	require.NoError(t, err)
	_, err = m.Step(ctx, userID, text("5А"))
	require.NoError(t, err)

	require.Len(t, students.rows, 1)
	assert.Equal(t, "двенадцать", students.rows[0].Age)
}

func TestRegistrationInsertFailureResetsSession(t *testing.T) {
	m, students, _, sessions := newTestMachine()
	students.err = errors.New("connection refused")
	ctx := context.Background()
	const userID = int64(9)

	_, err := m.Step(ctx, userID, cmd(CommandRegister))
	require.NoError(t, err)
	_, err = m.Step(ctx, userID, text("Ким"))
	require.NoError(t, err)
	_, err = m.Step(ctx, userID, text("13"))
	require.NoError(t, err)

	res, err := m.Step(ctx, userID, text("7В"))
	require.Error(t, err)
	assert.True(t, res.Handled)
	assert.Empty(t, res.Reply)
	assert.False(t, sessions.InProgress(userID), "a failed insert must not leave the user stuck in the flow")
	assert.Empty(t, students.rows)
}

func TestInterleavedRegistrationsAreIsolated(t *testing.T) {
	m, students, _, _ := newTestMachine()
	ctx := context.Background()
	alice, bob := int64(1), int64(2)

	_, err := m.Step(ctx, alice, cmd(CommandRegister))
	require.NoError(t, err)
	_, err = m.Step(ctx, bob, cmd(CommandRegister))
	require.NoError(t, err)

	_, err = m.Step(ctx, alice, text("Алиса"))
	require.NoError(t, err)
	_, err = m.Step(ctx, bob, text("Борис"))
	require.NoError(t, err)
	_, err = m.Step(ctx, bob, text("11"))
	require.NoError(t, err)
	_, err = m.Step(ctx, alice, text("10"))
	require.NoError(t, err)
	_, err = m.Step(ctx, alice, text("4А"))
	require.NoError(t, err)
	_, err = m.Step(ctx, bob, text("5Б"))
	require.NoError(t, err)

	require.Len(t, students.rows, 2)
	assert.Equal(t, Student{Name: "Алиса", Age: "10", Grade: "4А"}, students.rows[0].Student)
	assert.Equal(t, Student{Name: "Борис", Age: "11", Grade: "5Б"}, students.rows[1].Student)
}

func TestFlowCommandRestartsActiveFlow(t *testing.T) {
	m, students, _, sessions := newTestMachine()
	ctx := context.Background()
	const userID = int64(42)

	_, err := m.Step(ctx, userID, cmd(CommandRegister))
	require.NoError(t, err)
	_, err = m.Step(ctx, userID, text("Петр"))
	require.NoError(t, err)

	// Restarting mid-flow discards collected fields.
	res, err := m.Step(ctx, userID, cmd(CommandRegister))
	require.NoError(t, err)
	assert.Equal(t, PromptName, res.Reply)
	assert.Equal(t, StateRegWaitingName, sessions.GetState(userID))
	assert.Empty(t, sessions.Fields(userID))

	// Switching flows mid-flow abandons registration entirely.
	res, err = m.Step(ctx, userID, cmd(CommandVoice))
	require.NoError(t, err)
	assert.Equal(t, PromptVoiceNote, res.Reply)
	assert.Equal(t, StateVoiceWaiting, sessions.GetState(userID))
	assert.Empty(t, students.rows)
}

func TestVoiceCaptureHappyPath(t *testing.T) {
	m, _, voices, sessions := newTestMachine()
	ctx := context.Background()
	const userID = int64(5)

	res, err := m.Step(ctx, userID, cmd(CommandVoice))
	require.NoError(t, err)
	assert.Equal(t, PromptVoiceNote, res.Reply)

	res, err = m.Step(ctx, userID, voice("f1"))
	require.NoError(t, err)
	assert.Equal(t, MsgVoiceSaved, res.Reply)
	assert.True(t, res.EchoVoice)
	require.Len(t, voices.saved, 1)
	assert.Equal(t, "u_f1", voices.saved[0].UniqueID)
	assert.False(t, sessions.InProgress(userID))
}

func TestVoiceWaitingIgnoresOtherEvents(t *testing.T) {
	m, _, voices, sessions := newTestMachine()
	ctx := context.Background()
	const userID = int64(6)

	_, err := m.Step(ctx, userID, cmd(CommandVoice))
	require.NoError(t, err)

	for _, ev := range []Event{text("это не голос"), {Kind: KindPhoto, File: FileRef{ID: "p1"}}} {
		res, err := m.Step(ctx, userID, ev)
		require.NoError(t, err)
		assert.True(t, res.Handled)
		assert.Empty(t, res.Reply)
	}

	assert.Equal(t, StateVoiceWaiting, sessions.GetState(userID))
	assert.Empty(t, voices.saved)
}

func TestVoiceSaveFailureResetsSession(t *testing.T) {
	m, _, voices, sessions := newTestMachine()
	voices.err = errors.New("disk full")
	ctx := context.Background()
	const userID = int64(8)

	_, err := m.Step(ctx, userID, cmd(CommandVoice))
	require.NoError(t, err)

	res, err := m.Step(ctx, userID, voice("f2"))
	require.Error(t, err)
	assert.True(t, res.Handled)
	assert.False(t, sessions.InProgress(userID))
}

func TestIdleNonCommandIsNotHandled(t *testing.T) {
	m, _, _, _ := newTestMachine()
	ctx := context.Background()

	res, err := m.Step(ctx, 3, text("просто сообщение"))
	require.NoError(t, err)
	assert.False(t, res.Handled)

	res, err = m.Step(ctx, 3, cmd("weather"))
	require.NoError(t, err)
	assert.False(t, res.Handled, "non-flow commands are not the machine's business")
}
