package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Deep Learning", "Deep Learning"},
		{"extra spaces", "  Deep   Learning  ", "Deep Learning"},
		{"newlines and tabs", "Deep\nLearning\tModels", "Deep Learning Models"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanTitle(tc.in))
		})
	}
}

func TestFormatAbstract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"crlf normalised", "First line.\r\nSecond line.", "First line.\nSecond line."},
		{"trailing spaces stripped", "First line.   \nSecond line.\t", "First line.\nSecond line."},
		{"outer blank lines dropped", "\n\nBody text.\n\n", "Body text."},
		{"paragraph break preserved", "Para one.\n\nPara two.", "Para one.\n\nPara two."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatAbstract(tc.in))
		})
	}
}
