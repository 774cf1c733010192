package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/storage"
)

// --- Общие хелперы ---

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampIntPtr(v *int, min, max int) *int {
	if v == nil {
		return nil
	}
	c := clampInt(*v, min, max)
	return &c
}

// validateDisplayName: обязательное имя, 2–80 символов после обрезки пробелов.
func validateDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrDisplayNameRequired
	}
	if len(trimmed) < models.DisplayNameMinLen || len(trimmed) > models.DisplayNameMaxLen {
		return "", ErrDisplayNameLength
	}
	return trimmed, nil
}

// normalizeRanks перенумеровывает ростер 1..N по текущему порядку рангов;
// участники без ранга опускаются вниз по seed, затем по id. Возвращает
// индексы участников, чей ранг изменился.
func normalizeRanks(members []models.Member) []int {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		switch {
		case a.Rank != nil && b.Rank != nil && *a.Rank != *b.Rank:
			return *a.Rank < *b.Rank
		case a.Rank != nil && b.Rank == nil:
			return true
		case a.Rank == nil && b.Rank != nil:
			return false
		}
		if a.Seed != nil && b.Seed != nil && *a.Seed != *b.Seed {
			return *a.Seed < *b.Seed
		}
		return a.ID < b.ID
	})

	changed := make([]int, 0)
	for i := range members {
		want := i + 1
		if members[i].Rank == nil || *members[i].Rank != want {
			rank := want
			members[i].Rank = &rank
			changed = append(changed, i)
		}
	}
	return changed
}

// --- Хелперы для заполнения URL логотипов ---

func populateLadderLogoURLFunc(ladder *models.Ladder, uploader storage.FileUploader) {
	if ladder != nil && ladder.LogoKey != nil && *ladder.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*ladder.LogoKey)
		if url != "" {
			ladder.LogoURL = &url
		}
	}
}

// GetExtensionFromContentType переводит content-type изображения в расширение
// файла для ключа объекта в хранилище.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
	}
}
