// internal/errors/service.go - CLI-facing error presentation
package errors

import (
	"fmt"
	"strings"
)

// Service converts errors into user-facing messages and process exit codes.
type Service struct {
	messageHandler *MessageHandler
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// NewService creates a new error presentation service
func NewService() *Service {
	return &Service{
		messageHandler: &MessageHandler{showTechnical: false},
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch KindOf(err) {
	case KindDetectionFailed:
		return "Store Locator Not Recognized",
			"No supported store locator platform was found on the page.",
			[]string{
				"Check that the URL points at the brand's store locator page",
				"Run the detect command to see which rules were tried",
				"Enable the browser fallback in configuration",
			}
	case KindEndpointUnavailable:
		return "Locator API Unavailable",
			"The store locator API could not be reached or returned an error status.",
			[]string{
				"Check your internet connection",
				"Increase http.timeout in configuration",
				"The platform may be rate limiting; increase the request delay",
			}
	case KindMalformedResponse:
		return "Unreadable Response",
			"The store locator returned data that could not be parsed.",
			[]string{
				"The platform may have changed its response format",
				"Re-run with --verbose to see the offending URL",
			}
	case KindEmptyResult:
		return "No Stores Found",
			"The store locator responded but listed no locations.",
			[]string{
				"Verify the detected instance id with the detect command",
				"Try the browser fallback strategy",
			}
	case KindConfig:
		return "Configuration Error",
			"The configuration is invalid.",
			[]string{
				"Check YAML indentation (use spaces, not tabs)",
				"Run the validate command for details",
			}
	case KindInput:
		return "Invalid Input",
			"An input dataset could not be read.",
			[]string{
				"Check that the file exists and contains a JSON store list",
			}
	case KindOutput:
		return "Output Error",
			"Results could not be written.",
			[]string{
				"Check that the output directory is writable",
				"Verify database connection settings",
			}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection Timeout",
			"The request timed out.",
			[]string{
				"Check your internet connection",
				"Increase timeout value in configuration",
			}
	}
	if strings.Contains(errStr, "yaml") {
		return "Configuration Error",
			"The configuration file has invalid YAML syntax.",
			[]string{
				"Check YAML indentation (use spaces, not tabs)",
				"Ensure proper quoting of string values",
			}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{
			"Try running the command again",
			"Check your configuration file",
		}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindEndpointUnavailable:
		return 3
	case KindMalformedResponse:
		return 4
	case KindOutput:
		return 5
	case KindInput:
		return 6
	case KindDetectionFailed, KindEmptyResult:
		return 7
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return 2
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection"):
		return 3
	default:
		return 1
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
	}

	return b.String()
}
