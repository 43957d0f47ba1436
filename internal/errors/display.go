package errors

import (
	"fmt"
	"sort"
	"strings"
)

// DisplayError formats an error for user-friendly display
func DisplayError(err error) string {
	if oerr, ok := err.(*OrchestrationError); ok {
		return oerr.Error()
	}

	return fmt.Sprintf("Error: %v", err)
}

// DisplayErrorSummary provides a brief summary of the error for logs
func DisplayErrorSummary(err error) string {
	if oerr, ok := err.(*OrchestrationError); ok {
		return fmt.Sprintf("%s-%s: %s", oerr.Category, oerr.Code, oerr.Message)
	}

	errStr := err.Error()
	if len(errStr) > 100 {
		return errStr[:97] + "..."
	}
	return errStr
}

// FormatForCLI formats an error for command-line display with proper spacing
func FormatForCLI(err error) string {
	oerr, ok := err.(*OrchestrationError)
	if !ok {
		return fmt.Sprintf("\nError: %v\n", err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n%s Error [%s-%s]\n", oerr.Category, oerr.Category, oerr.Code))
	sb.WriteString(fmt.Sprintf("  %s\n", oerr.Message))

	if oerr.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nFailed Operation: %s\n", oerr.Operation))
	}

	if len(oerr.Context) > 0 {
		sb.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(oerr.Context))
		for k := range oerr.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", key, oerr.Context[key]))
		}
	}

	if oerr.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nUnderlying error: %v\n", oerr.OriginalError))
	}

	return sb.String()
}
