package logger

import (
	"os"
	"strings"

	"assessment_engine_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FieldSubmissionID = "submission_id"
	FieldAssessmentID = "assessment_id"
	FieldUserID       = "user_id"
)

// Log 在 Init 之前为 Nop，测试与后台任务可以直接使用
var Log = zap.NewNop()

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Init 控制台输出可读格式；配置了 File 时另写一份按大小滚动的 JSON 日志
func Init(cfg config.LogConfig, mode string) {
	Log = zap.New(newCore(cfg, mode, zapcore.AddSync(os.Stdout)),
		zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", "assessment-engine"))
}

func newCore(cfg config.LogConfig, mode string, console zapcore.WriteSyncer) zapcore.Core {
	level := Level(cfg.Level, mode)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), console, level),
	}
	if cfg.File != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), file, level))
	}
	return zapcore.NewTee(cores...)
}

// Level 显式配置优先，无法解析时回落到按运行模式选择
func Level(configured, mode string) zapcore.Level {
	var level zapcore.Level
	if configured != "" && level.UnmarshalText([]byte(strings.ToLower(configured))) == nil {
		return level
	}
	if mode == "debug" {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// ForSubmission 作答生命周期内的日志统一带上 submission_id
func ForSubmission(submissionID string) *zap.Logger {
	return Log.With(zap.String(FieldSubmissionID, submissionID))
}

// ForCandidate 开始作答前（还没有 submission_id）的日志
func ForCandidate(assessmentID, userID uint) *zap.Logger {
	return Log.With(zap.Uint(FieldAssessmentID, assessmentID), zap.Uint(FieldUserID, userID))
}

// Sync 刷新缓冲区，退出前调用
func Sync() {
	_ = Log.Sync()
}
