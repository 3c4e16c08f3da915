// Package convo is the append-only conversation log shown as chat bubbles.
package convo

import (
	"time"

	"go.uber.org/zap"
)

// Origin tells who wrote a message.
type Origin string

const (
	User   Origin = "user"
	System Origin = "system"
)

// Message is immutable once appended.
type Message struct {
	Seq    int
	Origin Origin
	Text   string
	At     time.Time
}

// Recorder persists appended messages.
type Recorder interface {
	RecordMessage(msg Message) error
}

// Log is not safe for concurrent use; the UI mutates it from its update loop.
type Log struct {
	messages []Message
	seq      int
	now      func() time.Time
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Log)

func WithRecorder(r Recorder) Option {
	return func(l *Log) { l.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLog(opts ...Option) *Log {
	l := &Log{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore seeds an empty log with earlier messages, keeping their order.
// It is a no-op once anything has been appended.
func (l *Log) Restore(msgs []Message) {
	if len(l.messages) > 0 {
		return
	}
	for _, msg := range msgs {
		l.seq++
		msg.Seq = l.seq
		l.messages = append(l.messages, msg)
	}
}

// Append adds a message. Timestamps never go backwards even if the clock does.
func (l *Log) Append(origin Origin, text string) Message {
	at := l.now()
	if n := len(l.messages); n > 0 && at.Before(l.messages[n-1].At) {
		at = l.messages[n-1].At
	}
	l.seq++
	msg := Message{Seq: l.seq, Origin: origin, Text: text, At: at}
	l.messages = append(l.messages, msg)
	if l.recorder != nil {
		if err := l.recorder.RecordMessage(msg); err != nil {
			l.logger.Warn("record message failed", zap.Int("seq", msg.Seq), zap.Error(err))
		}
	}
	return msg
}

func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int { return len(l.messages) }
