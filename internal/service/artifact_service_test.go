package service

import (
	"context"
	"testing"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput(code string) *domain.ArtifactInput {
	return &domain.ArtifactInput{
		ArtifactCode: code,
		ImageURL:     "https://cdn.example.com/drum.jpg",
		Title:        domain.Localized{"en": "Bronze Drum", "vi": "Trống đồng"},
		Description:  domain.Localized{"en": "A Dong Son drum.", "vi": ""},
		AudioURLs:    domain.Localized{"en": "https://cdn.example.com/en.mp3", "vi": ""},
	}
}

func TestArtifactService_CreateAndLookupIgnoresCase(t *testing.T) {
	repo := newFakeArtifactRepo()
	svc := NewArtifactService(repo, nil, logger.Nop())

	created, err := svc.Create(context.Background(), sampleInput(" a123 "))
	require.NoError(t, err)
	assert.Equal(t, "A123", created.ArtifactCode)
	assert.Empty(t, created.ListenCounts)

	for _, code := range []string{"a123", "A123", "  A123\t"} {
		found, err := svc.LookupByCode(context.Background(), code)
		require.NoError(t, err, code)
		assert.Equal(t, created.ID, found.ID, code)
	}
}

func TestArtifactService_RoundTripKeepsEmptyLanguages(t *testing.T) {
	repo := newFakeArtifactRepo()
	svc := NewArtifactService(repo, nil, logger.Nop())

	created, err := svc.Create(context.Background(), sampleInput("B7"))
	require.NoError(t, err)

	loaded, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.Localized{"en": "A Dong Son drum.", "vi": ""}, loaded.Description)
	assert.Equal(t, domain.Localized{"en": "https://cdn.example.com/en.mp3", "vi": ""}, loaded.AudioURLs)
	_, ok := loaded.AudioURLFor(domain.LanguageVietnamese)
	assert.False(t, ok)
}

func TestArtifactService_LookupErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		repoErr  error
		wantType errors.ErrorType
	}{
		{name: "empty code", code: "   ", wantType: errors.ErrorTypeValidation},
		{name: "unknown code", code: "Z9", wantType: errors.ErrorTypeNotFound},
		{name: "store down", code: "A1", repoErr: errStoreDown, wantType: errors.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeArtifactRepo()
			repo.err = tt.repoErr
			svc := NewArtifactService(repo, nil, logger.Nop())

			artifact, err := svc.LookupByCode(context.Background(), tt.code)

			assert.Nil(t, artifact)
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestArtifactService_CreateValidation(t *testing.T) {
	svc := NewArtifactService(newFakeArtifactRepo(), nil, logger.Nop())

	_, err := svc.Create(context.Background(), &domain.ArtifactInput{ArtifactCode: "  "})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	input := sampleInput("C1")
	input.Title["xx"] = "Unknown"
	_, err = svc.Create(context.Background(), input)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
	assert.Contains(t, appErr.Details, "title.xx")
}

func TestArtifactService_DuplicateCodeConflicts(t *testing.T) {
	svc := NewArtifactService(newFakeArtifactRepo(), nil, logger.Nop())

	_, err := svc.Create(context.Background(), sampleInput("D1"))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), sampleInput("d1"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestArtifactService_UpdateKeepsCodeAndCounts(t *testing.T) {
	repo := newFakeArtifactRepo()
	svc := NewArtifactService(repo, nil, logger.Nop())
	listens := NewListenService(repo, logger.Nop())

	created, err := svc.Create(context.Background(), sampleInput("E1"))
	require.NoError(t, err)
	_, err = listens.RecordListen(context.Background(), created.ID, domain.LanguageEnglish)
	require.NoError(t, err)

	update := &domain.ArtifactInput{
		Title: domain.Localized{"en": "Bronze Drum (restored)"},
	}
	updated, err := svc.Update(context.Background(), created.ID, update)
	require.NoError(t, err)

	assert.Equal(t, "E1", updated.ArtifactCode)
	assert.Equal(t, "Bronze Drum (restored)", updated.Title["en"])
	assert.Equal(t, map[string]int64{"en": 1}, updated.ListenCounts)

	_, err = svc.Update(context.Background(), created.ID, &domain.ArtifactInput{ArtifactCode: "E2"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = svc.Update(context.Background(), uuid.NewString(), update)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestArtifactService_Delete(t *testing.T) {
	repo := newFakeArtifactRepo()
	svc := NewArtifactService(repo, nil, logger.Nop())

	created, err := svc.Create(context.Background(), sampleInput("F1"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))

	_, err = svc.LookupByCode(context.Background(), "F1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	err = svc.Delete(context.Background(), created.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	err = svc.Delete(context.Background(), "garbage")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestArtifactService_Stats(t *testing.T) {
	repo := newFakeArtifactRepo()
	svc := NewArtifactService(repo, nil, logger.Nop())
	listens := NewListenService(repo, logger.Nop())

	created, err := svc.Create(context.Background(), sampleInput("G1"))
	require.NoError(t, err)
	for _, lang := range []domain.Language{domain.LanguageVietnamese, domain.LanguageEnglish, domain.LanguageEnglish} {
		_, err := listens.RecordListen(context.Background(), created.ID, lang)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	require.Len(t, stats.Counts, 2)
	assert.Equal(t, domain.LanguageEnglish, stats.Counts[0].Language)
	assert.Equal(t, int64(2), stats.Counts[0].Count)
	assert.Equal(t, domain.LanguageVietnamese, stats.Counts[1].Language)
}

func TestArtifactService_CachedLookup(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := newFakeArtifactRepo()
	cache := NewCacheService(client, nil)
	svc := NewArtifactService(repo, cache, logger.Nop())

	created, err := svc.Create(context.Background(), sampleInput("H1"))
	require.NoError(t, err)

	_, err = svc.LookupByCode(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.hits())

	key := client.KeyBuilder.KeyArtifactByCode("H1")
	require.Eventually(t, func() bool { return mr.Exists(key) }, time.Second, 10*time.Millisecond)

	cached, err := svc.LookupByCode(context.Background(), "H1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, cached.ID)
	assert.Equal(t, 1, repo.hits())

	// Editing drops the cached copy
	_, err = svc.Update(context.Background(), created.ID, &domain.ArtifactInput{Title: domain.Localized{"en": "New"}})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	fresh, err := svc.LookupByCode(context.Background(), "H1")
	require.NoError(t, err)
	assert.Equal(t, "New", fresh.Title["en"])
	assert.Equal(t, 2, repo.hits())
}
