package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/vegchange/schema"
)

// Color variables for console output, one per change class.
var (
	StrongLossColor   = color.New(color.FgRed, color.Bold) // StrongLossColor marks clear vegetation loss.
	ModerateLossColor = color.New(color.FgYellow, color.Bold)
	StableColor       = color.New(color.FgWhite)
	ModerateGainColor = color.New(color.FgGreen)
	StrongGainColor   = color.New(color.FgGreen, color.Bold)
)

// GetColorLabel returns a colored class label for console output (table).
// It uses schema.GetLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(c schema.ChangeClass, lang schema.Language) string {
	text := schema.GetLabel(c, lang)

	switch c {
	case schema.StrongLoss:
		return StrongLossColor.Sprint(text)
	case schema.ModerateLoss:
		return ModerateLossColor.Sprint(text)
	case schema.Stable:
		return StableColor.Sprint(text)
	case schema.ModerateGain:
		return ModerateGainColor.Sprint(text)
	case schema.StrongGain:
		return StrongGainColor.Sprint(text)
	default:
		return text
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// LogInfo logs a progress message to stderr so stdout stays machine readable.
func LogInfo(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for durable cache storage.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".vegchange_cache.db"
	}
	return filepath.Join(homeDir, ".vegchange_cache.db")
}

// GetAnalysisDBFilePath returns the path to the SQLite DB file for analysis storage.
func GetAnalysisDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".vegchange_analysis.db"
	}
	return filepath.Join(homeDir, ".vegchange_analysis.db")
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
