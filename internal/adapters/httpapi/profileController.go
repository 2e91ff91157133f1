package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProfileController struct {
	uc     ProfileUseCase
	logger *zap.Logger
}

func NewProfileController(uc ProfileUseCase, logger *zap.Logger) *ProfileController {
	return &ProfileController{uc: uc, logger: logger}
}

// GetUserByUsername -> profile.getUserByUserName
func (ctl *ProfileController) GetUserByUsername(c *gin.Context) {
	p, err := ctl.uc.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, ctl.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
