package router

import (
	"time"

	tg "schoolbot/core/telegram"
	"schoolbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a conversation flow manager.
type FSM interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
	HandleVoice(c tele.Context) error
	HandlePhoto(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text/voice/photo updates
// arriving outside of an active conversation flow.
type MessageOptions struct {
	UnknownText tele.HandlerFunc
	Voice       tele.HandlerFunc
	Photo       tele.HandlerFunc
}

// MessageRoutes builds handlers for text, voice and photo routing.
// An active flow owned by the sender always takes the update first;
// otherwise text resolves against registered commands, then the
// registry text fallback, and media goes to the configured handlers.
func MessageRoutes(fsmMgr FSM, reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "flow", start, "", "", func() error {
				return fsmMgr.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	voiceHandler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "flow_voice", start, "", "", func() error {
				return fsmMgr.HandleVoice(c)
			})
		}
		if opts.Voice != nil {
			return handleWithSummary(c, "voice", start, "", "", func() error {
				return opts.Voice(c)
			})
		}
		logHandlerSummary(c, "unexpected_voice", start, "skip", "ok", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "flow_photo", start, "", "", func() error {
				return fsmMgr.HandlePhoto(c)
			})
		}
		if opts.Photo != nil {
			return handleWithSummary(c, "photo", start, "", "", func() error {
				return opts.Photo(c)
			})
		}
		logHandlerSummary(c, "unexpected_photo", start, "skip", "ok", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnVoice, Handler: wrap(voiceHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(photoHandler)},
	}
}
