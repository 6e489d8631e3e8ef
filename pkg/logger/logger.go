package logger

import (
	"fmt"
	"log"
	"os"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	WarnLogger  *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// Output depth of 2 makes Lshortfile point at the caller, not this file.
const callDepth = 2

func Info(format string, v ...interface{}) {
	InfoLogger.Output(callDepth, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	ErrorLogger.Output(callDepth, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if os.Getenv("ENVIRONMENT") == "development" {
		DebugLogger.Output(callDepth, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	WarnLogger.Output(callDepth, fmt.Sprintf(format, v...))
}

// LogPersistenceError records a store failure that is not surfaced to any
// client, such as an asynchronous receipt update.
func LogPersistenceError(conversationID, action string, err error) {
	ErrorLogger.Output(callDepth, fmt.Sprintf("Persistence error: action=%s, conversation=%s, error=%v", action, conversationID, err))
}
