package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DescriptionPlaceholder is shown when an artifact has no description in the chosen language
const DescriptionPlaceholder = "Discover the fascinating story..."

// Localized maps a language code to text or a URL
type Localized map[string]string

// Get returns the value for lang; empty values count as missing
func (l Localized) Get(lang Language) (string, bool) {
	v, ok := l[string(lang)]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Artifact is an exhibit with per-language narration (the audio_guides row)
type Artifact struct {
	ID           string           `json:"id" db:"id"`
	ArtifactCode string           `json:"artifact_code" db:"artifact_code"`
	ImageURL     string           `json:"image_url" db:"image_url"`
	Title        Localized        `json:"title" db:"title"`
	Description  Localized        `json:"description" db:"description"`
	AudioURLs    Localized        `json:"audio_urls" db:"audio_urls"`
	ListenCounts map[string]int64 `json:"listen_counts" db:"listen_counts"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// NormalizeCode trims and upper-cases an artifact code so "a123" and "A123" match
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// TitleFor returns the title in lang or a generic "Artifact <CODE>" label
func (a *Artifact) TitleFor(lang Language) string {
	if title, ok := a.Title.Get(lang); ok {
		return title
	}
	return fmt.Sprintf("Artifact %s", a.ArtifactCode)
}

// DescriptionFor returns the description in lang or the placeholder text
func (a *Artifact) DescriptionFor(lang Language) string {
	if desc, ok := a.Description.Get(lang); ok {
		return desc
	}
	return DescriptionPlaceholder
}

// AudioURLFor returns the narration URL for lang. A missing or empty entry means
// the narration is unavailable in that language.
func (a *Artifact) AudioURLFor(lang Language) (string, bool) {
	return a.AudioURLs.Get(lang)
}

// TotalListens sums the listen counts across languages
func (a *Artifact) TotalListens() int64 {
	var total int64
	for _, n := range a.ListenCounts {
		total += n
	}
	return total
}

// ArtifactInput is what staff may write. Listen counts are deliberately absent.
type ArtifactInput struct {
	ArtifactCode string    `json:"artifact_code"`
	ImageURL     string    `json:"image_url"`
	Title        Localized `json:"title"`
	Description  Localized `json:"description"`
	AudioURLs    Localized `json:"audio_urls"`
}

// Normalize upper-cases the code and replaces nil maps with empty ones
func (in *ArtifactInput) Normalize() {
	in.ArtifactCode = NormalizeCode(in.ArtifactCode)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Title == nil {
		in.Title = Localized{}
	}
	if in.Description == nil {
		in.Description = Localized{}
	}
	if in.AudioURLs == nil {
		in.AudioURLs = Localized{}
	}
}

// LanguageCount is one row of the listen statistics
type LanguageCount struct {
	Language Language `json:"language"`
	Name     string   `json:"name"`
	Count    int64    `json:"count"`
}

// ArtifactStats summarizes listen counts for one artifact
type ArtifactStats struct {
	ArtifactID   string          `json:"artifact_id"`
	ArtifactCode string          `json:"artifact_code"`
	Title        string          `json:"title"`
	Counts       []LanguageCount `json:"counts"`
	Total        int64           `json:"total"`
}

// Stats lists the recorded counts, supported languages first in display order
func (a *Artifact) Stats() *ArtifactStats {
	stats := &ArtifactStats{
		ArtifactID:   a.ID,
		ArtifactCode: a.ArtifactCode,
		Title:        a.TitleFor(DefaultLanguage),
		Counts:       make([]LanguageCount, 0, len(a.ListenCounts)),
	}

	seen := make(map[string]bool, len(a.ListenCounts))
	for _, lang := range SupportedLanguages {
		if n, ok := a.ListenCounts[string(lang)]; ok {
			stats.Counts = append(stats.Counts, LanguageCount{Language: lang, Name: lang.NativeName(), Count: n})
			seen[string(lang)] = true
		}
	}

	var other []string
	for code := range a.ListenCounts {
		if !seen[code] {
			other = append(other, code)
		}
	}
	sort.Strings(other)
	for _, code := range other {
		stats.Counts = append(stats.Counts, LanguageCount{Language: Language(code), Name: code, Count: a.ListenCounts[code]})
	}

	stats.Total = a.TotalListens()
	return stats
}
