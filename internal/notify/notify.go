// Package notify carries short-lived user feedback: success, info, warning
// and danger notices.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a notice.
type Level int

const (
	Success Level = iota
	Info
	Warning
	Danger
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Danger:
		return "danger"
	default:
		return "unknown"
	}
}

// Notice is one message shown to the user.
type Notice struct {
	Seq   int
	Level Level
	Text  string
	At    time.Time
}

// Sink receives notices. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(level Level, text string)
}

// Func adapts a function to a Sink.
type Func func(level Level, text string)

func (f Func) Notify(level Level, text string) { f(level, text) }

// Discard drops every notice.
var Discard Sink = Func(func(Level, string) {})

func Successf(s Sink, format string, args ...any) { s.Notify(Success, fmt.Sprintf(format, args...)) }
func Infof(s Sink, format string, args ...any)    { s.Notify(Info, fmt.Sprintf(format, args...)) }
func Warnf(s Sink, format string, args ...any)    { s.Notify(Warning, fmt.Sprintf(format, args...)) }
func Dangerf(s Sink, format string, args ...any)  { s.Notify(Danger, fmt.Sprintf(format, args...)) }

const (
	defaultCapacity = 50
	defaultTTL      = 4 * time.Second
)

// Center keeps the most recent notices. Notices older than the TTL are no
// longer active but stay readable through Recent.
type Center struct {
	mu       sync.Mutex
	notices  []Notice
	seq      int
	capacity int
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Center.
type Option func(*Center)

func WithCapacity(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.capacity = n
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Center) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Center) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Center) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCenter(opts ...Option) *Center {
	c := &Center{
		capacity: defaultCapacity,
		ttl:      defaultTTL,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) Notify(level Level, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	c.mu.Lock()
	c.seq++
	notice := Notice{Seq: c.seq, Level: level, Text: trimmed, At: c.now()}
	c.notices = append(c.notices, notice)
	if len(c.notices) > c.capacity {
		c.notices = c.notices[len(c.notices)-c.capacity:]
	}
	c.mu.Unlock()

	c.logger.Info("notice", zap.Stringer("level", level), zap.String("text", trimmed))
}

// Recent returns up to n notices, oldest first.
func (c *Center) Recent(n int) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.notices) {
		n = len(c.notices)
	}
	out := make([]Notice, n)
	copy(out, c.notices[len(c.notices)-n:])
	return out
}

// Active returns the notices still within their display window.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.ttl)
	out := make([]Notice, 0, len(c.notices))
	for _, notice := range c.notices {
		if notice.At.After(cutoff) {
			out = append(out, notice)
		}
	}
	return out
}

func (c *Center) Latest() (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}
