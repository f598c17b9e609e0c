// Package ingest turns uploaded files into retrievable document memories.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hellofriend/hellofriend/internal/memory"
)

// chunkSize bounds how much of a file goes into one document record, so a
// retrieval match returns a focused excerpt instead of the whole file.
const chunkSize = 1000

var ErrEmptyFile = errors.New("file has no content")

// Service chunks file text and persists each chunk as a confirmed
// document record. Documents have no pending state: they are visible to
// retrieval the moment they land.
type Service struct {
	memories *memory.Service
}

func NewService(memories *memory.Service) *Service {
	return &Service{memories: memories}
}

// Result reports what one ingestion produced.
type Result struct {
	FileID    string   `json:"fileId"`
	FileName  string   `json:"fileName"`
	Chunks    int      `json:"chunks"`
	RecordIDs []string `json:"recordIds"`
}

// IngestFile splits content into chunks and stores each one. A failure
// mid-file returns the chunks already persisted; callers may retry the
// whole file, duplicate chunks are tolerable, lost ones are not.
func (s *Service) IngestFile(ctx context.Context, userID, fileName, content string) (Result, error) {
	if strings.TrimSpace(content) == "" {
		return Result{}, ErrEmptyFile
	}

	fileID := uuid.NewString()
	res := Result{FileID: fileID, FileName: fileName}

	chunks := splitChunks(content, chunkSize)
	for i, chunk := range chunks {
		rec, err := s.memories.Save(ctx, memory.SaveRequest{
			UserID:    userID,
			Kind:      memory.KindDocument,
			Content:   chunk,
			Confirmed: true,
			Metadata: map[string]string{
				memory.MetaSource:   fileName,
				memory.MetaFileName: fileName,
				"type":              "file_content",
				"chunk":             fmt.Sprintf("file-%s-chunk-%d", fileID, i),
			},
		})
		if err != nil {
			return res, fmt.Errorf("ingest %s chunk %d/%d: %w", fileName, i, len(chunks), err)
		}
		res.Chunks++
		res.RecordIDs = append(res.RecordIDs, rec.ID)
	}
	return res, nil
}

// splitChunks cuts text into size-character pieces without splitting a
// multi-byte rune.
func splitChunks(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
