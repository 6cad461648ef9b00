package security

import "go.uber.org/zap/zapcore"

// Level is the severity of a security event
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// zapLevel maps a security severity onto the application log level
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelLow:
		return zapcore.InfoLevel
	case LevelMedium:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
