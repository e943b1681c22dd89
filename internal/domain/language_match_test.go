package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferredLanguage(t *testing.T) {
	tests := []struct {
		name        string
		preferences []string
		expected    Language
	}{
		{name: "nothing", preferences: nil, expected: LanguageEnglish},
		{name: "empty header", preferences: []string{""}, expected: LanguageEnglish},
		{name: "vietnamese browser", preferences: []string{"vi-VN,vi;q=0.9,en;q=0.8"}, expected: LanguageVietnamese},
		{name: "quality ordering", preferences: []string{"ko;q=0.5,ja;q=0.9"}, expected: LanguageJapanese},
		{name: "regional variant", preferences: []string{"fr-CA"}, expected: LanguageFrench},
		{name: "unsupported", preferences: []string{"pt-BR"}, expected: LanguageEnglish},
		{name: "posix locale", preferences: []string{"de_DE.UTF-8"}, expected: LanguageGerman},
		{name: "first usable preference", preferences: []string{"", "ru_RU"}, expected: LanguageRussian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PreferredLanguage(tt.preferences...))
		})
	}
}
