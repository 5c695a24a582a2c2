package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"Mercury/internal/service"
)

type UserHandler interface {
	CreateUser(c *gin.Context)
	GetUser(c *gin.Context)
	GetUserByPhone(c *gin.Context)
}

type userHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) UserHandler {
	return &userHandler{
		service: service,
	}
}

// CreateUser registers a user. userKey and phoneNumber must be unique.
func (h *userHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		status, payload := errorResponse(err)
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": user,
	})
}

func (h *userHandler) GetUser(c *gin.Context) {
	userKey := c.Param("userKey")

	user, err := h.service.GetUser(c.Request.Context(), userKey)
	if err != nil {
		status, payload := errorResponse(err)
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

func (h *userHandler) GetUserByPhone(c *gin.Context) {
	phone := c.Param("phoneNumber")

	user, err := h.service.GetUserByPhone(c.Request.Context(), phone)
	if err != nil {
		status, payload := errorResponse(err)
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

// errorResponse maps a service error to an HTTP status and body. Non-domain
// errors are masked.
func errorResponse(err error) (int, gin.H) {
	var de *service.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, gin.H{
			"code":  service.CodeSomethingWentWrong,
			"error": "Something went wrong",
		}
	}

	status := http.StatusBadRequest
	switch de.Code {
	case service.CodeUserNotFound, service.CodeMessageNotFound, service.CodePartnerNotFound:
		status = http.StatusNotFound
	case service.CodeUserAlreadyExists, service.CodePhoneAlreadyExists:
		status = http.StatusConflict
	}

	return status, gin.H{
		"code":  de.Code,
		"error": de.Message,
	}
}
