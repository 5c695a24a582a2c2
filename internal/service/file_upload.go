package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Upload session states
const (
	uploadReceiving = "receiving"
	uploadMerging   = "merging"
	uploadDone      = "done"
	uploadFailed    = "failed"
)

// Size limits
const (
	MaxFileSize  = 50 * 1024 * 1024  // 50MB
	MaxVideoSize = 100 * 1024 * 1024 // 100MB for videos
	MaxChunkSize = 2 * 1024 * 1024   // per-chunk ceiling, bounds memory per frame
)

var supportedFileTypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"video/mp4", "video/webm", "video/ogg",
	"application/pdf", "application/msword", "text/plain",
}

// ChunkRequest is one decoded chunk of an in-flight upload.
type ChunkRequest struct {
	FileID      string
	ChunkIndex  int
	TotalChunks int
	ChunkData   []byte
	FileName    string
	FileType    string
	FileSize    int64
}

// ChunkResult reports progress after a chunk is accepted. Merged is true
// only on the call that actually performed the merge, so completion events
// fire exactly once even when the final chunk is retried.
type ChunkResult struct {
	ChunkIndex  int     `json:"chunkIndex"`
	TotalChunks int     `json:"totalChunks"`
	Progress    float64 `json:"progress"`
	Completed   bool    `json:"completed"`
	Merged      bool    `json:"-"`
	URL         string  `json:"url,omitempty"`
}

type uploadSession struct {
	mu           sync.Mutex
	fileID       string
	totalChunks  int
	fileName     string
	fileType     string
	fileSize     int64
	received     map[int]struct{}
	state        string
	url          string
	lastActivity time.Time
}

// FileUploadService drives the chunked upload state machine
// (receiving -> merging -> done, or failed). Chunks live under
// <root>/chunks/<fileId>/chunk_<index>; merged artifacts land in
// images/, videos/ or files/ by type category.
type FileUploadService struct {
	root         string
	maxFileSize  int64
	maxVideoSize int64

	mu       sync.Mutex
	sessions map[string]*uploadSession

	logger *zap.Logger
}

func NewFileUploadService(root string, logger *zap.Logger) (*FileUploadService, error) {
	s := &FileUploadService{
		root:         root,
		maxFileSize:  MaxFileSize,
		maxVideoSize: MaxVideoSize,
		sessions:     make(map[string]*uploadSession),
		logger:       logger,
	}

	for _, dir := range []string{root,
		filepath.Join(root, "images"),
		filepath.Join(root, "videos"),
		filepath.Join(root, "files"),
		filepath.Join(root, "chunks"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return s, nil
}

// GenerateFileID mints a fresh upload id.
func (s *FileUploadService) GenerateFileID() string {
	return uuid.New().String()
}

// ActiveSessions reports the number of uploads still receiving or merging.
func (s *FileUploadService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.state == uploadReceiving || sess.state == uploadMerging {
			n++
		}
		sess.mu.Unlock()
	}
	return n
}

// UploadChunk validates, stores and accounts one chunk. The merge triggers
// only once the received index set covers [0, totalChunks), regardless of
// arrival order; the per-session lock prevents a retried final chunk from
// merging twice.
func (s *FileUploadService) UploadChunk(req ChunkRequest) (*ChunkResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	sess := s.session(req)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActivity = time.Now()

	if sess.state == uploadDone {
		// Retry of an already-merged upload; report completion, do not re-merge.
		return &ChunkResult{
			ChunkIndex:  req.ChunkIndex,
			TotalChunks: sess.totalChunks,
			Progress:    100,
			Completed:   true,
			URL:         sess.url,
		}, nil
	}

	// The first chunk pins the session geometry; later chunks must agree with
	// it, or the coverage accounting (and the merge) would be wrong.
	if req.TotalChunks != sess.totalChunks || req.ChunkIndex >= sess.totalChunks {
		return nil, NewDomainError(CodeValidationError, "chunk does not match upload session")
	}

	chunkDir := filepath.Join(s.root, "chunks", req.FileID)
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		sess.state = uploadFailed
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}

	chunkPath := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", req.ChunkIndex))
	if err := os.WriteFile(chunkPath, req.ChunkData, 0o644); err != nil {
		sess.state = uploadFailed
		return nil, fmt.Errorf("write chunk %d: %w", req.ChunkIndex, err)
	}

	sess.state = uploadReceiving
	sess.received[req.ChunkIndex] = struct{}{}

	result := &ChunkResult{
		ChunkIndex:  req.ChunkIndex,
		TotalChunks: sess.totalChunks,
		Progress:    float64(len(sess.received)) / float64(sess.totalChunks) * 100,
	}

	if len(sess.received) < sess.totalChunks {
		return result, nil
	}

	sess.state = uploadMerging
	url, err := s.merge(sess, chunkDir)
	if err != nil {
		// Chunks stay on disk so the client can retry the merge trigger.
		sess.state = uploadFailed
		s.logger.Error("chunk merge failed",
			zap.String("file_id", req.FileID), zap.Error(err))
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	sess.state = uploadDone
	sess.url = url
	_ = os.RemoveAll(chunkDir)

	result.Progress = 100
	result.Completed = true
	result.Merged = true
	result.URL = url

	s.logger.Info("upload merged",
		zap.String("file_id", req.FileID),
		zap.String("url", url),
		zap.Int("chunks", sess.totalChunks),
	)
	return result, nil
}

func (s *FileUploadService) validate(req ChunkRequest) error {
	if _, err := uuid.Parse(req.FileID); err != nil {
		return NewDomainError(CodeValidationError, "fileId must be a valid UUID")
	}
	if req.TotalChunks < 1 || req.ChunkIndex < 0 || req.ChunkIndex >= req.TotalChunks {
		return NewDomainError(CodeValidationError, "chunk index out of range")
	}
	if len(req.ChunkData) > MaxChunkSize {
		return NewDomainError(CodeFileTooLarge,
			fmt.Sprintf("Chunk too large. Max chunk size: %dMB", MaxChunkSize/(1024*1024)))
	}

	if !s.isSupportedType(req.FileType) {
		return NewDomainError(CodeUnsupportedFileType, "Unsupported file type")
	}

	maxSize := s.maxFileSize
	if isVideoType(req.FileType) {
		maxSize = s.maxVideoSize
	}
	if req.FileSize > maxSize {
		return NewDomainError(CodeFileTooLarge,
			fmt.Sprintf("File too large. Max size: %dMB", maxSize/(1024*1024)))
	}
	return nil
}

func (s *FileUploadService) session(req ChunkRequest) *uploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[req.FileID]
	if !ok {
		sess = &uploadSession{
			fileID:      req.FileID,
			totalChunks: req.TotalChunks,
			fileName:    req.FileName,
			fileType:    req.FileType,
			fileSize:    req.FileSize,
			received:    make(map[int]struct{}),
			state:       uploadReceiving,
		}
		s.sessions[req.FileID] = sess
	}
	return sess
}

// merge streams the chunks in index order into the final artifact. Caller
// holds the session lock.
func (s *FileUploadService) merge(sess *uploadSession, chunkDir string) (string, error) {
	category := typeCategory(sess.fileType)
	finalName := sess.fileID + filepath.Ext(sess.fileName)
	finalPath := filepath.Join(s.root, category, finalName)

	dest, err := os.Create(finalPath)
	if err != nil {
		return "", err
	}

	for i := 0; i < sess.totalChunks; i++ {
		chunk, err := os.Open(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			dest.Close()
			os.Remove(finalPath)
			return "", err
		}
		_, err = io.Copy(dest, chunk)
		chunk.Close()
		if err != nil {
			dest.Close()
			os.Remove(finalPath)
			return "", err
		}
	}

	if err := dest.Close(); err != nil {
		os.Remove(finalPath)
		return "", err
	}

	return "/uploads/" + category + "/" + finalName, nil
}

// PruneIdle drops sessions (and their chunk dirs) with no activity for the
// given duration. Completed sessions are kept briefly so final-chunk retries
// stay idempotent, then pruned the same way.
func (s *FileUploadService) PruneIdle(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	cutoff := time.Now().Add(-maxAge)
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActivity.Before(cutoff) && sess.state != uploadMerging
		sess.mu.Unlock()
		if !idle {
			continue
		}
		_ = os.RemoveAll(filepath.Join(s.root, "chunks", id))
		delete(s.sessions, id)
		pruned++
	}
	if pruned > 0 {
		s.logger.Info("pruned idle upload sessions", zap.Int("count", pruned))
	}
	return pruned
}

func (s *FileUploadService) isSupportedType(fileType string) bool {
	for _, t := range supportedFileTypes {
		if t == fileType {
			return true
		}
	}
	return false
}

func isVideoType(fileType string) bool {
	return strings.HasPrefix(fileType, "video/")
}

func isImageType(fileType string) bool {
	return strings.HasPrefix(fileType, "image/")
}

func typeCategory(fileType string) string {
	switch {
	case isVideoType(fileType):
		return "videos"
	case isImageType(fileType):
		return "images"
	default:
		return "files"
	}
}
