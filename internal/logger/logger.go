package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	logFile *os.File
	noColor bool
}

// NewLogger writes coloured lines to stdout and, when dir is set, JSON lines to a daily file in dir.
func NewLogger(dir string) *Logger {
	logger := &Logger{out: os.Stdout}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create logs directory:", err)
		}
		logFileName := filepath.Join(dir, fmt.Sprintf("deals-service-%s.log", time.Now().Format("2006-01-02")))
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Failed to create log file:", err)
		}
		logger.logFile = logFile
		logger.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))
	}

	return logger
}

// NewWithWriter is used by tests and tools that want terminal output captured or discarded.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{out: w, noColor: true}
}

// output records the caller depth frames above itself; every exported method
// calls it directly so the suffix points at the code that logged.
func (l *Logger) output(depth int, level LogLevel, category, message string) {
	_, file, line, ok := runtime.Caller(depth)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     l.levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.out, l.formatTerminalOutput(entry))
	if l.logFile != nil {
		l.logFile.WriteString(l.formatJSONOutput(entry) + "\n")
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	var levelColor, categoryColor *color.Color

	switch entry.Level {
	case "DEBUG":
		levelColor = l.paint(color.FgCyan)
		categoryColor = l.paint(color.FgCyan, color.Bold)
	case "INFO":
		levelColor = l.paint(color.FgGreen)
		categoryColor = l.paint(color.FgGreen, color.Bold)
	case "WARN":
		levelColor = l.paint(color.FgYellow)
		categoryColor = l.paint(color.FgYellow, color.Bold)
	case "ERROR", "FATAL":
		levelColor = l.paint(color.FgRed, color.Bold)
		categoryColor = l.paint(color.FgRed, color.Bold)
	default:
		levelColor = l.paint(color.FgWhite)
		categoryColor = l.paint(color.FgWhite, color.Bold)
	}

	timeStr := l.paint(color.FgBlue).Sprintf("%s", timestamp)
	levelStr := levelColor.Sprintf("%-5s", entry.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", entry.Category)

	if entry.File != "" && entry.Line > 0 {
		fileInfo := l.paint(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
	}
	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, entry.Message)
}

// paint builds a colour for this logger; a no-colour logger leaves the global setting alone.
func (l *Logger) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if l.noColor {
		c.DisableColor()
	}
	return c
}

func (l *Logger) formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

func (l *Logger) levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) {
	l.output(2, DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.output(2, INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.output(2, WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.output(2, ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.output(2, FATAL, category, message)
	os.Exit(1)
}

func (l *Logger) LogDeal(action, dealID, message string) {
	l.output(2, INFO, "DEAL", fmt.Sprintf("[%s] %s - %s", action, dealID, message))
}

func (l *Logger) LogRedemption(action, code, message string) {
	l.output(2, INFO, "REDEMPTION", fmt.Sprintf("[%s] %s - %s", action, code, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.output(2, INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.output(2, INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.output(2, INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.output(2, WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
