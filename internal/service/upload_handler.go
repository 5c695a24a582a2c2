package service

import (
	"context"
	"encoding/base64"
	"errors"

	"go.uber.org/zap"

	"Mercury/internal/event"
	"Mercury/internal/repo"
)

// UploadHandlerService sits between the socket and the upload pipeline: it
// decodes the wire payload, checks the recipient, and publishes progress and
// completion events to the uploading user.
type UploadHandlerService struct {
	users   repo.UserRepository
	uploads *FileUploadService
	gateway *Gateway
	logger  *zap.Logger
}

func NewUploadHandlerService(users repo.UserRepository, uploads *FileUploadService, gateway *Gateway, logger *zap.Logger) *UploadHandlerService {
	return &UploadHandlerService{
		users:   users,
		uploads: uploads,
		gateway: gateway,
		logger:  logger,
	}
}

func (s *UploadHandlerService) HandleUploadChunk(ctx context.Context, userKey string, dto *event.UploadFileChunkDTO) error {
	if _, err := s.users.FindByUserKey(ctx, dto.RecipientKey); err != nil {
		if errors.Is(err, repo.ErrUserMissing) {
			return ErrRecipientNotFound
		}
		return err
	}

	data, err := base64.StdEncoding.DecodeString(dto.ChunkData)
	if err != nil {
		return NewDomainError(CodeValidationError, "chunkData is not valid base64")
	}

	result, err := s.uploads.UploadChunk(ChunkRequest{
		FileID:      dto.FileID,
		ChunkIndex:  dto.ChunkIndex,
		TotalChunks: dto.TotalChunks,
		ChunkData:   data,
		FileName:    dto.FileName,
		FileType:    dto.FileType,
		FileSize:    dto.FileSize,
	})
	if err != nil {
		return err
	}

	s.gateway.PublishUploadProgress(userKey, dto.FileID, result.Progress, dto.RecipientKey)

	if result.Merged && result.URL != "" {
		s.gateway.PublishUploadComplete(userKey, event.UploadCompletePayload{
			FileID:       dto.FileID,
			URL:          result.URL,
			FileName:     dto.FileName,
			FileType:     dto.FileType,
			FileSize:     dto.FileSize,
			RecipientKey: dto.RecipientKey,
		})
	}

	s.logger.Debug("chunk accepted",
		zap.String("file_id", dto.FileID),
		zap.Int("chunk_index", dto.ChunkIndex),
		zap.Int("total_chunks", dto.TotalChunks),
		zap.Float64("progress", result.Progress),
	)
	return nil
}
