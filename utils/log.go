// Package utils provides utilities that are used in all sub-packages of p2ptcp.
package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	Log_debug = iota
	Log_info
	Log_warning
	Log_error //connection errors, protocol violations of the peer. Not fatal.
	Log_fatal

	DefaultLL = Log_info
)

// LogLevel is the zap level plus one, so 0 is debug. See the Log_ constants.
var (
	LogLevel       int = DefaultLL
	LogOutFileName string
	ZapLogger      *zap.Logger
)

// max size of one log file in megabytes before lumberjack rotates it
var LogFileMaxSize = 10

func init() {
	//tests and library users may never call InitLog
	ZapLogger = zap.NewNop()
}

func encoderConf(level zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		TimeKey:     "time",
		EncodeLevel: level,
		EncodeTime:  zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		LineEnding:  zapcore.DefaultLineEnding,
	}
}

// InitLog builds ZapLogger from LogLevel and LogOutFileName.
// Stdout gets colored console lines, the log file gets json lines.
func InitLog() {
	level := zap.NewAtomicLevelAt(zapcore.Level(LogLevel - 1))

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConf(zapcore.CapitalColorLevelEncoder)), zapcore.Lock(os.Stdout), level),
	}

	if LogOutFileName != "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConf(zapcore.LowercaseLevelEncoder)), zapcore.AddSync(&lumberjack.Logger{
			Filename: LogOutFileName,
			MaxSize:  LogFileMaxSize,
		}), level))
	}

	ZapLogger = zap.New(zapcore.NewTee(cores...))
	if ce := CanLogDebug("log init ok"); ce != nil {
		ce.Write(zap.Int("level", LogLevel), zap.String("file", LogOutFileName))
	}
}

func canLogLevel(l zapcore.Level, msg string) *zapcore.CheckedEntry {
	return ZapLogger.Check(l, msg)
}

func CanLogErr(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.ErrorLevel, msg)
}

func CanLogInfo(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.InfoLevel, msg)
}

func CanLogWarn(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.WarnLevel, msg)
}

func CanLogDebug(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.DebugLevel, msg)
}
