package hub

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"Mercury/internal/event"
	"Mercury/internal/service"
)

// HandlerFunc processes one inbound socket event for a client.
type HandlerFunc func(ctx context.Context, c *Client, ev event.WsEvent) error

// Middleware wraps a HandlerFunc with a cross-cutting stage.
type Middleware func(next HandlerFunc) HandlerFunc

// chain composes middleware so the first listed runs outermost.
func chain(h HandlerFunc, mw ...Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Dispatcher routes validated inbound events to the core services through an
// explicit interceptor chain: authenticate -> audit -> route. Per-event
// payload validation runs inside route, and every error leaves as a
// structured error frame addressed to the requesting user.
type Dispatcher struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	typing        *service.TypingService
	uploads       *service.UploadHandlerService
	gateway       *service.Gateway
	audit         *service.AuditLogger
	logger        *zap.Logger

	handler HandlerFunc
}

func NewDispatcher(
	messages *service.MessageService,
	conversations *service.ConversationService,
	typing *service.TypingService,
	uploads *service.UploadHandlerService,
	gateway *service.Gateway,
	audit *service.AuditLogger,
	logger *zap.Logger,
) *Dispatcher {
	d := &Dispatcher{
		messages:      messages,
		conversations: conversations,
		typing:        typing,
		uploads:       uploads,
		gateway:       gateway,
		audit:         audit,
		logger:        logger,
	}
	d.handler = chain(d.route, d.authenticate, d.auditEvents)
	return d
}

// Dispatch runs one inbound event through the chain. Errors never propagate
// past this point; they are converted and published to the client.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, ev event.WsEvent) {
	if err := d.handler(ctx, c, ev); err != nil {
		d.gateway.PublishError(c.UserKey(), err)
	}
}

func (d *Dispatcher) authenticate(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, c *Client, ev event.WsEvent) error {
		if c.UserKey() == "" {
			return service.NewDomainError(service.CodeUnauthorized, "User not authenticated")
		}
		return next(ctx, c, ev)
	}
}

func (d *Dispatcher) auditEvents(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, c *Client, ev event.WsEvent) error {
		d.audit.EventReceived(c.UserKey(), c.Sender().UserName, ev.Event)

		start := time.Now()
		err := next(ctx, c, ev)
		d.audit.EventHandled(c.UserKey(), ev.Event, time.Since(start), err)
		return err
	}
}

// decode unmarshals and validates an inbound payload. Both failure modes are
// validation errors: the connection stays open and only the requester hears
// about it.
func decode[T event.Validator](payload json.RawMessage, dto T) error {
	if err := json.Unmarshal(payload, dto); err != nil {
		return &service.DomainError{
			Code:    service.CodeValidationError,
			Message: "Malformed payload",
			Details: err.Error(),
		}
	}
	if err := dto.Validate(); err != nil {
		return &service.DomainError{
			Code:    service.CodeValidationError,
			Message: "Invalid payload",
			Details: err.Error(),
		}
	}
	return nil
}

func (d *Dispatcher) route(ctx context.Context, c *Client, ev event.WsEvent) error {
	switch ev.Event {
	case event.EventSendMessage:
		var dto event.SendMessageDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		_, err := d.messages.SendMessage(ctx, service.SendRequest{
			SenderKey:    c.UserKey(),
			Sender:       c.Sender(),
			RecipientKey: dto.RecipientKey,
			Content:      dto.Content,
			MessageType:  dto.MessageType,
			ReplyTo:      dto.ReplyTo,
			Attachments:  dto.Attachments,
		})
		return err

	case event.EventGetMessageHistory:
		var dto event.PagingDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		payload, err := d.conversations.ListConversations(ctx, c.UserKey(), dto.PageOrDefault(), dto.PageSizeOrDefault())
		if err != nil {
			return err
		}
		d.gateway.PublishConversationList(c.UserKey(), *payload)
		return nil

	case event.EventGetConversation:
		var dto event.GetConversationDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		payload, err := d.conversations.GetConversation(ctx, c.UserKey(), c.Sender(), dto.PartnerKey, dto.PageOrDefault(), dto.PageSizeOrDefault())
		if err != nil {
			return err
		}
		d.gateway.PublishConversation(c.UserKey(), *payload)
		return nil

	case event.EventTypingStart:
		var dto event.TypingDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		d.typing.TypingStart(c.UserKey(), c.Sender().UserName, dto.RecipientKey)
		return nil

	case event.EventTypingStop:
		var dto event.TypingDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		d.typing.TypingStop(c.UserKey(), c.Sender().UserName, dto.RecipientKey)
		return nil

	case event.EventMessageDelivered:
		var dto event.MessageStatusDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		return d.messages.MarkDelivered(ctx, dto.MessageID, c.UserKey())

	case event.EventMessageRead:
		var dto event.MessageStatusDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		return d.messages.MarkRead(ctx, dto.MessageID, c.UserKey())

	case event.EventUploadFileChunk:
		var dto event.UploadFileChunkDTO
		if err := decode(ev.Payload, &dto); err != nil {
			return err
		}
		return d.uploads.HandleUploadChunk(ctx, c.UserKey(), &dto)

	default:
		d.logger.Warn("unknown event type",
			zap.String("event", ev.Event),
			zap.String("user_key", c.UserKey()))
		return &service.DomainError{
			Code:    service.CodeValidationError,
			Message: "Unknown event",
			Details: ev.Event,
		}
	}
}
