// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	mu           sync.Mutex
	level        = INFO
	consoleLevel = WARN
	fileHandle   *os.File
)

// SetLevel sets the minimum level written to the log file.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	if l < consoleLevel {
		consoleLevel = l
	}
}

// SetConsoleLevel sets the minimum level echoed to stderr. The default keeps
// the interactive chat output clean: only warnings and errors reach the
// console unless debug mode lowers it.
func SetConsoleLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	consoleLevel = l
}

// OpenFile routes log output to a per-day file under dir, creating dir if
// needed. Subsequent calls replace the previous file.
func OpenFile(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fileHandle != nil {
		_ = fileHandle.Close()
	}
	fileHandle = f
	return nil
}

// Close flushes and detaches the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if fileHandle != nil {
		_ = fileHandle.Close()
		fileHandle = nil
	}
}

func DebugC(component, msg string) { write(DEBUG, component, msg, nil) }
func InfoC(component, msg string)  { write(INFO, component, msg, nil) }
func WarnC(component, msg string)  { write(WARN, component, msg, nil) }
func ErrorC(component, msg string) { write(ERROR, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]interface{}) {
	write(DEBUG, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	write(INFO, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	write(WARN, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	write(ERROR, component, msg, fields)
}

func write(l Level, component, msg string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if l < level && l < consoleLevel {
		return
	}

	line := fmt.Sprintf("%s [%s] [%s] %s%s\n",
		time.Now().Format("2006-01-02 15:04:05"), l, component, msg, formatFields(fields))

	if l >= level && fileHandle != nil {
		_, _ = fileHandle.WriteString(line)
	}
	if l >= consoleLevel {
		_, _ = fmt.Fprint(os.Stderr, line)
	}
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	return sb.String()
}
