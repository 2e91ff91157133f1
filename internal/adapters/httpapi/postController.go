package httpapi

import (
	"net/http"

	"chirp/internal/core/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PostController struct {
	pc     PostUseCase
	logger *zap.Logger
}

func NewPostController(pc PostUseCase, logger *zap.Logger) *PostController {
	return &PostController{pc: pc, logger: logger}
}

// GetAll -> posts.getAll
func (ctl *PostController) GetAll(c *gin.Context) {
	items, err := ctl.pc.GetAll(c.Request.Context())
	if err != nil {
		writeError(c, ctl.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": items})
}

// GetByID -> posts.getById
func (ctl *PostController) GetByID(c *gin.Context) {
	item, err := ctl.pc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, ctl.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetByUserID -> posts.getPostByUserId
func (ctl *PostController) GetByUserID(c *gin.Context) {
	items, err := ctl.pc.GetByUserID(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, ctl.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": items})
}

// CreatePost -> posts.create
func (ctl *PostController) CreatePost(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ctl.logger, &apperr.ValidationError{Field: "body", Reason: apperr.ReasonInvalid})
		return
	}
	// گرفتن userID از context
	userID := c.GetString("userID")
	res, err := ctl.pc.CreatePost(c.Request.Context(), userID, req.Content)
	if err != nil {
		writeError(c, ctl.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
