// Package format builds notification text from Slack events.
package format

import (
	"fmt"
	"strings"
)

const aliasPrefix = "alias:"

// DefaultTemplate is used when no notification template is configured.
const DefaultTemplate = "A new emoji is added"

// EmojiAdded renders the announcement for a newly added custom emoji.
// rawValue is the emoji_changed "value" field: an image URL, or
// "alias:<origin>" when the emoji is an alias of another one.
func EmojiAdded(name, rawValue, template string) string {
	message := fmt.Sprintf("%s :%s: `:%s:`", template, name, name)
	if origin, ok := strings.CutPrefix(rawValue, aliasPrefix); ok {
		message += fmt.Sprintf(" (alias of `:%s:`)", origin)
	}
	return message
}
