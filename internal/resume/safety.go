package resume

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxContentBytes is the ceiling for resume content, measured in encoded
// byte length. It matches the transport-level request body cap.
const MaxContentBytes = 16 * 1024 * 1024

var (
	// ErrEmptyContent means no usable content was supplied.
	ErrEmptyContent = errors.New("resume content is empty")
	// ErrContentTooLarge means the content exceeds MaxContentBytes.
	ErrContentTooLarge = errors.New("resume content exceeds size limit")
	// ErrUnsafeContent means the content tripped the safety denylist.
	ErrUnsafeContent = errors.New("resume content failed safety validation")
)

// The denylist is best-effort: it rejects obvious script injection markers
// rather than sanitizing the document.
var (
	scriptTagPattern     = regexp.MustCompile(`(?i)<\s*script`)
	javascriptURIPattern = regexp.MustCompile(`(?i)javascript\s*:`)
	dataURIPattern       = regexp.MustCompile(`(?i)data\s*:`)
	documentRootPattern  = regexp.MustCompile(`(?i)^\s*(<!doctype\s+html|<html)`)
)

// ValidateContent checks a resume document before it is stored. The same
// check runs against enhanced content returned by the LLM, so a hostile
// rewrite never replaces a stored resume.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: %d bytes", ErrContentTooLarge, len(content))
	}
	if scriptTagPattern.MatchString(content) {
		return fmt.Errorf("%w: embedded script tag", ErrUnsafeContent)
	}
	if javascriptURIPattern.MatchString(content) {
		return fmt.Errorf("%w: javascript uri", ErrUnsafeContent)
	}
	if dataURIPattern.MatchString(content) {
		return fmt.Errorf("%w: data uri", ErrUnsafeContent)
	}
	if !documentRootPattern.MatchString(content) {
		return fmt.Errorf("%w: missing document root element", ErrUnsafeContent)
	}
	return nil
}
