package domain

// ArtifactForm is the flat editing view of an artifact: one field per language
// for title, description and audio. It converts to and from ArtifactInput.
type ArtifactForm struct {
	ArtifactCode string `json:"artifact_code"`
	ImageURL     string `json:"image_url"`

	TitleEN string `json:"title_en"`
	TitleVI string `json:"title_vi"`
	TitleZH string `json:"title_zh"`
	TitleRU string `json:"title_ru"`
	TitleKO string `json:"title_ko"`
	TitleJA string `json:"title_ja"`
	TitleFR string `json:"title_fr"`
	TitleDE string `json:"title_de"`

	DescriptionEN string `json:"description_en"`
	DescriptionVI string `json:"description_vi"`
	DescriptionZH string `json:"description_zh"`
	DescriptionRU string `json:"description_ru"`
	DescriptionKO string `json:"description_ko"`
	DescriptionJA string `json:"description_ja"`
	DescriptionFR string `json:"description_fr"`
	DescriptionDE string `json:"description_de"`

	AudioEN string `json:"audio_en"`
	AudioVI string `json:"audio_vi"`
	AudioZH string `json:"audio_zh"`
	AudioRU string `json:"audio_ru"`
	AudioKO string `json:"audio_ko"`
	AudioJA string `json:"audio_ja"`
	AudioFR string `json:"audio_fr"`
	AudioDE string `json:"audio_de"`
}

type formFields struct {
	title, description, audio *string
}

func (f *ArtifactForm) fields() map[Language]formFields {
	return map[Language]formFields{
		LanguageEnglish:    {&f.TitleEN, &f.DescriptionEN, &f.AudioEN},
		LanguageVietnamese: {&f.TitleVI, &f.DescriptionVI, &f.AudioVI},
		LanguageChinese:    {&f.TitleZH, &f.DescriptionZH, &f.AudioZH},
		LanguageRussian:    {&f.TitleRU, &f.DescriptionRU, &f.AudioRU},
		LanguageKorean:     {&f.TitleKO, &f.DescriptionKO, &f.AudioKO},
		LanguageJapanese:   {&f.TitleJA, &f.DescriptionJA, &f.AudioJA},
		LanguageFrench:     {&f.TitleFR, &f.DescriptionFR, &f.AudioFR},
		LanguageGerman:     {&f.TitleDE, &f.DescriptionDE, &f.AudioDE},
	}
}

// ArtifactFormFrom fills a form from named values such as a posted HTML form.
// Field names match the JSON tags: artifact_code, image_url, title_<lang>,
// description_<lang> and audio_<lang>.
func ArtifactFormFrom(get func(name string) string) *ArtifactForm {
	f := &ArtifactForm{
		ArtifactCode: get("artifact_code"),
		ImageURL:     get("image_url"),
	}
	for lang, ff := range f.fields() {
		*ff.title = get("title_" + string(lang))
		*ff.description = get("description_" + string(lang))
		*ff.audio = get("audio_" + string(lang))
	}
	return f
}

// ToInput nests the flat fields. Every supported language gets a key, even
// when its value is empty.
func (f *ArtifactForm) ToInput() *ArtifactInput {
	in := &ArtifactInput{
		ArtifactCode: f.ArtifactCode,
		ImageURL:     f.ImageURL,
		Title:        Localized{},
		Description:  Localized{},
		AudioURLs:    Localized{},
	}
	for lang, ff := range f.fields() {
		in.Title[string(lang)] = *ff.title
		in.Description[string(lang)] = *ff.description
		in.AudioURLs[string(lang)] = *ff.audio
	}
	return in
}

// FormFromArtifact flattens an artifact for editing
func FormFromArtifact(a *Artifact) *ArtifactForm {
	f := &ArtifactForm{
		ArtifactCode: a.ArtifactCode,
		ImageURL:     a.ImageURL,
	}
	for lang, ff := range f.fields() {
		*ff.title = a.Title[string(lang)]
		*ff.description = a.Description[string(lang)]
		*ff.audio = a.AudioURLs[string(lang)]
	}
	return f
}
