package domain

import (
	"golang.org/x/text/language"
)

var (
	languageTags = func() []language.Tag {
		tags := make([]language.Tag, len(SupportedLanguages))
		for i, lang := range SupportedLanguages {
			tags[i] = language.Make(string(lang))
		}
		return tags
	}()
	languageMatcher = language.NewMatcher(languageTags)
)

// PreferredLanguage picks the best supported language for an Accept-Language
// header or a locale such as "vi_VN.UTF-8". It falls back to DefaultLanguage.
func PreferredLanguage(preferences ...string) Language {
	var desired []language.Tag
	for _, pref := range preferences {
		if pref == "" {
			continue
		}
		if tags, _, err := language.ParseAcceptLanguage(pref); err == nil && len(tags) > 0 {
			desired = append(desired, tags...)
			continue
		}
		if tag, err := language.Parse(localeToBCP47(pref)); err == nil {
			desired = append(desired, tag)
		}
	}
	if len(desired) == 0 {
		return DefaultLanguage
	}

	_, index, confidence := languageMatcher.Match(desired...)
	if confidence == language.No {
		return DefaultLanguage
	}
	return SupportedLanguages[index]
}

// localeToBCP47 turns POSIX locales like "vi_VN.UTF-8" into "vi-VN"
func localeToBCP47(locale string) string {
	for i, r := range locale {
		if r == '.' || r == '@' {
			locale = locale[:i]
			break
		}
	}
	out := []rune(locale)
	for i, r := range out {
		if r == '_' {
			out[i] = '-'
		}
	}
	return string(out)
}
