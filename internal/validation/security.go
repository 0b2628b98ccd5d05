// Package validation provides security validation functions for preventing
// command injection, path traversal, and other security vulnerabilities.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateArgument validates a command line argument to prevent injection
// attacks. Absolute paths are permitted (the build pipeline passes absolute
// file paths to external tools) but must be clean and traversal-free.
func ValidateArgument(arg string) error {
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("contains null byte")
	}

	// Shell metacharacters. Arguments never pass through a shell, but
	// external tools re-invoke helpers with them, so reject anyway.
	dangerous := []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	if filepath.IsAbs(arg) && filepath.Clean(arg) != arg {
		return fmt.Errorf("absolute path is not clean: %s", arg)
	}

	return nil
}

// ValidateCommand validates a command name against an allowlist.
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	// Allowlist entries may be bare names (resolved via PATH) or the
	// command may be an absolute path whose base name is allowlisted.
	name := command
	if filepath.IsAbs(command) {
		name = filepath.Base(command)
	}

	if !allowedCommands[command] && !allowedCommands[name] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidateOrigin validates WebSocket origin for CSRF protection.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}
