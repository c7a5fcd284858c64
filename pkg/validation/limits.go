package validation

import (
	"fmt"
	"unicode/utf8"

	dErrors "inkwell/pkg/domain-errors"
)

// Field length limits for forms posted to this server.
const (
	MaxTitleLength    = 200
	MaxExcerptLength  = 500
	MaxUsernameLength = 50
	MaxEmailLength    = 255
	MaxPasswordLength = 128
	MinPasswordLength = 6
	MaxSearchLength   = 100

	// MaxDocumentBytes bounds the serialized block document of one post.
	MaxDocumentBytes = 2 << 20
)

// CheckStringLength validates that a string does not exceed max characters.
func CheckStringLength(fieldName, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
