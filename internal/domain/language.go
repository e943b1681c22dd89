package domain

// Language is a narration language code
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageVietnamese Language = "vi"
	LanguageChinese    Language = "zh"
	LanguageRussian    Language = "ru"
	LanguageKorean     Language = "ko"
	LanguageJapanese   Language = "ja"
	LanguageFrench     Language = "fr"
	LanguageGerman     Language = "de"
)

// DefaultLanguage is used when nothing better matches a visitor's preferences
const DefaultLanguage = LanguageEnglish

// SupportedLanguages is the display order used everywhere languages are listed
var SupportedLanguages = []Language{
	LanguageEnglish,
	LanguageVietnamese,
	LanguageChinese,
	LanguageRussian,
	LanguageKorean,
	LanguageJapanese,
	LanguageFrench,
	LanguageGerman,
}

// LanguageInfo describes a language for pickers
type LanguageInfo struct {
	Code       Language `json:"code"`
	Name       string   `json:"name"`
	NativeName string   `json:"native_name"`
}

var languageInfo = map[Language]LanguageInfo{
	LanguageEnglish:    {Code: LanguageEnglish, Name: "English", NativeName: "English"},
	LanguageVietnamese: {Code: LanguageVietnamese, Name: "Vietnamese", NativeName: "Tiếng Việt"},
	LanguageChinese:    {Code: LanguageChinese, Name: "Chinese", NativeName: "中文"},
	LanguageRussian:    {Code: LanguageRussian, Name: "Russian", NativeName: "Русский"},
	LanguageKorean:     {Code: LanguageKorean, Name: "Korean", NativeName: "한국어"},
	LanguageJapanese:   {Code: LanguageJapanese, Name: "Japanese", NativeName: "日本語"},
	LanguageFrench:     {Code: LanguageFrench, Name: "French", NativeName: "Français"},
	LanguageGerman:     {Code: LanguageGerman, Name: "German", NativeName: "Deutsch"},
}

// IsSupported reports whether lang is one of SupportedLanguages
func (l Language) IsSupported() bool {
	_, ok := languageInfo[l]
	return ok
}

// Info returns the display names for a supported language
func (l Language) Info() (LanguageInfo, bool) {
	info, ok := languageInfo[l]
	return info, ok
}

// NativeName returns the name shown on the language badge, or the code itself
func (l Language) NativeName() string {
	if info, ok := languageInfo[l]; ok {
		return info.NativeName
	}
	return string(l)
}

// Languages returns display info for all supported languages in order
func Languages() []LanguageInfo {
	out := make([]LanguageInfo, 0, len(SupportedLanguages))
	for _, lang := range SupportedLanguages {
		out = append(out, languageInfo[lang])
	}
	return out
}
