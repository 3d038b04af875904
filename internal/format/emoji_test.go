package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmojiAdded(t *testing.T) {
	tests := []struct {
		name     string
		emoji    string
		value    string
		template string
		want     string
	}{
		{
			name:     "image emoji",
			emoji:    "foo",
			value:    "bar",
			template: "A new emoji is added",
			want:     "A new emoji is added :foo: `:foo:`",
		},
		{
			name:     "alias",
			emoji:    "foo",
			value:    "alias:bar",
			template: "A new emoji is added",
			want:     "A new emoji is added :foo: `:foo:` (alias of `:bar:`)",
		},
		{
			name:     "alias prefix only at start",
			emoji:    "foo",
			value:    "https://emoji.slack-edge.com/T1/alias:bar.png",
			template: "New!",
			want:     "New! :foo: `:foo:`",
		},
		{
			name:     "custom template",
			emoji:    "party_parrot",
			value:    "https://emoji.slack-edge.com/T1/party_parrot.gif",
			template: "Look at this",
			want:     "Look at this :party_parrot: `:party_parrot:`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmojiAdded(tt.emoji, tt.value, tt.template))
		})
	}
}
