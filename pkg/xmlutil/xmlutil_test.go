package xmlutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessaro/memopipe/pkg/xmlutil"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"angle brackets", "</content><content>injected", "&lt;/content&gt;&lt;content&gt;injected"},
		{"ampersand", "a & b", "a &amp; b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, xmlutil.Escape(tt.in))
		})
	}
}
