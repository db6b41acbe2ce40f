// Package cli parses command-line arguments, validates user input and
// translates flags into the application's configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/oolong-ub/oolong/internal/app"
)

// ExitError is an error carrying a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("oolong", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
oolong - a modular Telegram userbot.

Usage:
  oolong [options]

Credentials may also come from the environment:
  OOLONG_API_ID, OOLONG_API_HASH, OOLONG_BOT_TOKEN

Options:
`)
		flagSet.PrintDefaults()
	}

	apiIDFlag := flagSet.Int("api-id", 0, "Telegram API id.")
	apiHashFlag := flagSet.String("api-hash", "", "Telegram API hash.")
	botTokenFlag := flagSet.String("bot-token", "", "Inline bot token; overrides the stored one.")
	dataDirFlag := flagSet.String("data-dir", "data", "Directory for session, store and logs.")
	modulesFlag := flagSet.String("modules-path", "", "Directory holding built-in module manifests.")
	customFlag := flagSet.String("custom-modules-path", "", "Directory holding user module manifests.")
	hotReloadFlag := flagSet.Bool("hot-reload", false, "Reload modules when their manifests change on disk.")
	debugFlag := flagSet.Bool("debug", false, "Shorthand for -log-level debug.")
	testModeFlag := flagSet.Bool("test-mode", false, "Connect to Telegram's test data centers.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFileFlag := flagSet.String("log-file", "", "Log file path; empty places oolong.log in the data dir, 'none' disables.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	apiID := *apiIDFlag
	if apiID == 0 {
		if env := os.Getenv("OOLONG_API_ID"); env != "" {
			parsed, err := strconv.Atoi(env)
			if err != nil {
				return nil, false, &ExitError{Code: 2, Message: "OOLONG_API_ID must be a number"}
			}
			apiID = parsed
		}
	}
	apiHash := *apiHashFlag
	if apiHash == "" {
		apiHash = os.Getenv("OOLONG_API_HASH")
	}
	botToken := *botTokenFlag
	if botToken == "" {
		botToken = os.Getenv("OOLONG_BOT_TOKEN")
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *debugFlag {
		logLevel = "debug"
	}

	logFile := *logFileFlag
	switch logFile {
	case "":
		logFile = *dataDirFlag + "/oolong.log"
	case "none":
		logFile = ""
	}

	config, err := app.NewConfig(app.Config{
		APIID:      int32(apiID),
		APIHash:    apiHash,
		BotToken:   botToken,
		DataDir:    *dataDirFlag,
		ModulesDir: *modulesFlag,
		CustomDir:  *customFlag,
		HotReload:  *hotReloadFlag,
		TestMode:   *testModeFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		LogFile:    logFile,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, false, nil
}
