package storage

import (
	"context"
	"fmt"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит бинарные артефакты лестниц: логотипы и пруфы
// разрешённых матчей. Движок хранит только непрозрачный ключ объекта.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// ProofKey строит ключ объекта для пруф-артефакта вызова.
func ProofKey(ladderID, challengeID int, ext string) string {
	return fmt.Sprintf("ladders/%d/proofs/challenge_%d%s", ladderID, challengeID, ext)
}
