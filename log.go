package nuclear

import (
	"reflect"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/nuclear-go/nuclear/message"
)

// logLevelFor maps the spec's LogLevel enum onto logiface's syslog-derived
// scale (spec §6: log<Level>(args...)).
func logLevelFor(l message.LogLevel) logiface.Level {
	switch l {
	case message.LogTrace:
		return logiface.LevelTrace
	case message.LogDebug:
		return logiface.LevelDebug
	case message.LogInfo:
		return logiface.LevelInformational
	case message.LogWarn:
		return logiface.LevelWarning
	case message.LogError:
		return logiface.LevelError
	case message.LogFatal:
		return logiface.LevelCritical
	default:
		return logiface.LevelInformational
	}
}

// logMessage applies the second stage of the two-stage filter from spec §6
// ("filtered by reactor display level and process minimum level"): the
// reactor's own SetLogLevel floor is checked first by (*Reactor).log, and
// logMessage then drops anything below the PowerPlant's
// WithMinimumLogLevel floor before it reaches the configured logiface
// logger or the bus as a message.LogMessage.
func (p *PowerPlant) logMessage(reactorName string, level message.LogLevel, text string) {
	if level < p.cfg.minimumLogLevel {
		return
	}

	now := time.Now()
	_ = p.cfg.logger.Log(logLevelFor(level), logiface.ModifierFunc[logiface.Event](func(e logiface.Event) error {
		e.AddField("reactor", reactorName)
		e.AddField("text", text)
		return nil
	}))

	p.emitLocal(reflect.TypeOf(message.LogMessage{}), message.LogMessage{
		Level:       level,
		ReactorName: reactorName,
		Text:        text,
		When:        now,
	})
}
