package event

import (
	"github.com/go-playground/validator/v10"

	"Mercury/internal/model"
)

var validate = validator.New()

// Validator is implemented by every inbound DTO; the dispatch chain runs it
// before the payload reaches a service.
type Validator interface {
	Validate() error
}

// SendMessageDTO carries a send_message request.
type SendMessageDTO struct {
	RecipientKey string             `json:"recipientKey" validate:"required"`
	Content      string             `json:"content" validate:"required,max=1000"`
	MessageType  string             `json:"messageType" validate:"required,oneof=text image file video"`
	ReplyTo      string             `json:"replyTo,omitempty" validate:"omitempty,len=24,hexadecimal"`
	Attachments  []model.Attachment `json:"attachments,omitempty" validate:"omitempty,max=5,dive"`
}

func (d *SendMessageDTO) Validate() error { return validate.Struct(d) }

// PagingDTO carries optional pagination; zero values fall back to defaults.
type PagingDTO struct {
	Page     int64 `json:"page,omitempty" validate:"omitempty,min=1"`
	PageSize int64 `json:"pageSize,omitempty" validate:"omitempty,min=1,max=100"`
}

func (d *PagingDTO) Validate() error { return validate.Struct(d) }

// PageOrDefault returns the page with a 1 fallback.
func (d *PagingDTO) PageOrDefault() int64 {
	if d.Page < 1 {
		return 1
	}
	return d.Page
}

// PageSizeOrDefault returns the page size with a 50 fallback.
func (d *PagingDTO) PageSizeOrDefault() int64 {
	if d.PageSize < 1 {
		return 50
	}
	return d.PageSize
}

// GetConversationDTO carries a get_conversation request.
type GetConversationDTO struct {
	PagingDTO
	PartnerKey string `json:"partnerKey" validate:"required"`
}

func (d *GetConversationDTO) Validate() error { return validate.Struct(d) }

// TypingDTO carries typing_start / typing_stop.
type TypingDTO struct {
	RecipientKey string `json:"recipientKey" validate:"required"`
}

func (d *TypingDTO) Validate() error { return validate.Struct(d) }

// MessageStatusDTO carries message_delivered / message_read acks.
type MessageStatusDTO struct {
	MessageID    string `json:"messageId" validate:"required,len=24,hexadecimal"`
	RecipientKey string `json:"recipientKey" validate:"required"`
}

func (d *MessageStatusDTO) Validate() error { return validate.Struct(d) }

// UploadFileChunkDTO carries one base64-encoded chunk of a file upload.
type UploadFileChunkDTO struct {
	FileID       string `json:"fileId" validate:"required,uuid4"`
	ChunkIndex   int    `json:"chunkIndex" validate:"min=0"`
	TotalChunks  int    `json:"totalChunks" validate:"required,min=1"`
	ChunkData    string `json:"chunkData" validate:"required,base64"`
	FileName     string `json:"fileName" validate:"required"`
	FileType     string `json:"fileType" validate:"required"`
	FileSize     int64  `json:"fileSize" validate:"required,min=1"`
	RecipientKey string `json:"recipientKey" validate:"required"`
}

func (d *UploadFileChunkDTO) Validate() error { return validate.Struct(d) }
