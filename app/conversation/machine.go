package conversation

import (
	"context"
	"fmt"

	"schoolbot/core/logger"
	"schoolbot/core/telegram/state"
	"log/slog"
)

// Flow states owned by the engine. StateIdle comes from the state package.
const (
	StateRegWaitingName  state.State = "reg_waiting_name"
	StateRegWaitingAge   state.State = "reg_waiting_age"
	StateRegWaitingGrade state.State = "reg_waiting_grade"
	StateVoiceWaiting    state.State = "voice_waiting"
)

// stateAny matches every state when resolving command transitions.
const stateAny state.State = "*"

const (
	CommandRegister = "register"
	CommandVoice    = "voice"
)

// Session data keys for the registration flow.
const (
	fieldName = "name"
	fieldAge  = "age"
)

// Prompts and confirmations produced by the engine.
const (
	PromptName      = "Введите имя студента:"
	PromptAge       = "Введите возраст студента:"
	PromptGrade     = "Введите класс студента:"
	PromptVoiceNote = "Отправьте голосовое сообщение:"
	MsgVoiceSaved   = "Голосовое сообщение сохранено!"
)

// MsgRegistered is the final registration confirmation template.
const MsgRegistered = "Студент %s, возраст %s, класс %s был успешно зарегистрирован!"

type action func(m *Machine, ctx context.Context, userID int64, ev Event) (Result, error)

// rule is one row of the transition table: a (state, event) pair,
// the state to move to, and the side effect to run.
type rule struct {
	from    state.State
	kind    Kind
	command string
	next    state.State
	apply   action
}

// transitions is the complete flow definition. Command rows use stateAny:
// a flow-starting command interrupts whatever flow the user is in.
var transitions = []rule{
	{from: stateAny, kind: KindCommand, command: CommandRegister, next: StateRegWaitingName, apply: startRegistration},
	{from: stateAny, kind: KindCommand, command: CommandVoice, next: StateVoiceWaiting, apply: startVoiceCapture},
	{from: StateRegWaitingName, kind: KindText, next: StateRegWaitingAge, apply: storeName},
	{from: StateRegWaitingAge, kind: KindText, next: StateRegWaitingGrade, apply: storeAge},
	{from: StateRegWaitingGrade, kind: KindText, next: state.StateIdle, apply: finishRegistration},
	{from: StateVoiceWaiting, kind: KindVoice, next: state.StateIdle, apply: archiveVoice},
}

// Machine drives the registration and voice-capture flows. Sessions,
// storage and the media sink are injected so the engine can be
// exercised without a bot or a database.
type Machine struct {
	sessions state.Manager
	students StudentStore
	voices   VoiceArchive
}

func NewMachine(sessions state.Manager, students StudentStore, voices VoiceArchive) *Machine {
	return &Machine{
		sessions: sessions,
		students: students,
		voices:   voices,
	}
}

// InProgress reports whether the user has an active flow.
func (m *Machine) InProgress(userID int64) bool {
	return m.sessions.InProgress(userID)
}

// Step feeds one event into the machine. Handled is false when the
// engine has no business with the event (idle user, no flow command)
// and the caller should route it elsewhere. A non-nil error means a side
// effect failed; the session is reset and the caller decides the
// user-facing reply.
func (m *Machine) Step(ctx context.Context, userID int64, ev Event) (Result, error) {
	current := m.sessions.GetState(userID)

	r, ok := resolve(current, ev)
	if !ok {
		if current == state.StateIdle {
			return Result{}, nil
		}
		// Active flow, event of the wrong kind: stay put and swallow it.
		logger.SVCFlow.LogAttrs(ctx, slog.LevelDebug, "step ignored",
			slog.String("event", "step.ignored"),
			slog.String("state", string(current)),
		)
		return Result{Handled: true}, nil
	}

	res, err := r.apply(m, ctx, userID, ev)
	if err != nil {
		m.sessions.Clear(userID)
		logger.SVCFlow.LogAttrs(ctx, slog.LevelError, "flow step failed",
			slog.String("event", "step.failed"),
			slog.String("state", string(current)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return Result{Handled: true}, err
	}

	if r.next == state.StateIdle {
		m.sessions.Clear(userID)
	} else {
		m.sessions.SetState(userID, r.next)
	}

	logger.SVCFlow.LogAttrs(ctx, slog.LevelDebug, "flow step",
		slog.String("event", "step"),
		slog.String("state", string(r.next)),
	)

	res.Handled = true
	return res, nil
}

func resolve(current state.State, ev Event) (rule, bool) {
	for _, r := range transitions {
		if r.kind != ev.Kind {
			continue
		}
		if ev.Kind == KindCommand && r.command != ev.Command {
			continue
		}
		if r.from != stateAny && r.from != current {
			continue
		}
		return r, true
	}
	return rule{}, false
}

func startRegistration(m *Machine, ctx context.Context, userID int64, _ Event) (Result, error) {
	m.sessions.Clear(userID)
	logger.SVCFlow.LogAttrs(ctx, slog.LevelInfo, "registration started",
		slog.String("event", "flow.start"),
		slog.String("flow", "registration"),
	)
	return Result{Reply: PromptName}, nil
}

func startVoiceCapture(m *Machine, ctx context.Context, userID int64, _ Event) (Result, error) {
	m.sessions.Clear(userID)
	logger.SVCFlow.LogAttrs(ctx, slog.LevelInfo, "voice capture started",
		slog.String("event", "flow.start"),
		slog.String("flow", "voice"),
	)
	return Result{Reply: PromptVoiceNote}, nil
}

func storeName(m *Machine, _ context.Context, userID int64, ev Event) (Result, error) {
	m.sessions.SetField(userID, fieldName, ev.Text)
	return Result{Reply: PromptAge}, nil
}

func storeAge(m *Machine, _ context.Context, userID int64, ev Event) (Result, error) {
	m.sessions.SetField(userID, fieldAge, ev.Text)
	return Result{Reply: PromptGrade}, nil
}

func finishRegistration(m *Machine, ctx context.Context, userID int64, ev Event) (Result, error) {
	name, _ := m.sessions.GetField(userID, fieldName)
	age, _ := m.sessions.GetField(userID, fieldAge)
	st := Student{Name: name, Age: age, Grade: ev.Text}

	id, err := m.students.AddStudent(ctx, st)
	if err != nil {
		return Result{}, fmt.Errorf("add student: %w", err)
	}

	logger.SVCFlow.LogAttrs(ctx, slog.LevelInfo, "registration completed",
		slog.String("event", "flow.complete"),
		slog.String("flow", "registration"),
		slog.Int64("student_id", id),
	)
	return Result{Reply: fmt.Sprintf(MsgRegistered, st.Name, st.Age, st.Grade)}, nil
}

func archiveVoice(m *Machine, ctx context.Context, userID int64, ev Event) (Result, error) {
	path, err := m.voices.SaveVoice(ctx, ev.File)
	if err != nil {
		return Result{}, fmt.Errorf("save voice: %w", err)
	}

	logger.SVCFlow.LogAttrs(ctx, slog.LevelInfo, "voice note archived",
		slog.String("event", "flow.complete"),
		slog.String("flow", "voice"),
		slog.String("path", path),
	)
	return Result{Reply: MsgVoiceSaved, EchoVoice: true}, nil
}
