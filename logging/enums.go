package logging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned when a level or color name is not
// recognized.
var ErrInvalidArgument = errors.New("logging: invalid argument")

// Level is the severity of a log line.
type Level int

// Log levels, spaced so that new levels can be slotted in between.
const (
	Debug    Level = 10
	Info     Level = 20
	Warning  Level = 30
	Error    Level = 40
	Critical Level = 50
)

var levelNames = map[Level]string{
	Debug:    "DEBUG",
	Info:     "INFO",
	Warning:  "WARNING",
	Error:    "ERROR",
	Critical: "CRITICAL",
}

// String returns the canonical upper-case name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converts a level name into a Level. Matching ignores case and
// accepts WARN as an alias of WARNING.
func ParseLevel(s string) (Level, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if upper == "WARN" {
		return Warning, nil
	}

	for level, name := range levelNames {
		if name == upper {
			return level, nil
		}
	}

	return 0, fmt.Errorf("unknown log level %q: %w", s, ErrInvalidArgument)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Color is a hint for how a console sink should highlight a line.
type Color int

// Log colors.
const (
	Normal Color = iota
	Green
	Blue
	Magenta
	Cyan
	Yellow
	Red
)

var colorNames = [...]string{
	Normal:  "NORMAL",
	Green:   "GREEN",
	Blue:    "BLUE",
	Magenta: "MAGENTA",
	Cyan:    "CYAN",
	Yellow:  "YELLOW",
	Red:     "RED",
}

// String returns the canonical upper-case name of the color.
func (c Color) String() string {
	if c >= 0 && int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("Color(%d)", int(c))
}

// ParseColor converts a color name into a Color, ignoring case.
func ParseColor(s string) (Color, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range colorNames {
		if name == upper {
			return Color(i), nil
		}
	}

	return 0, fmt.Errorf("unknown log color %q: %w", s, ErrInvalidArgument)
}

// ansi returns the escape sequence used to paint the color on a terminal.
func (c Color) ansi() string {
	switch c {
	case Green:
		return "\x1b[92m"
	case Blue:
		return "\x1b[94m"
	case Magenta:
		return "\x1b[35m"
	case Cyan:
		return "\x1b[36m"
	case Yellow:
		return "\x1b[1;33m"
	case Red:
		return "\x1b[1;31m"
	default:
		return ""
	}
}
