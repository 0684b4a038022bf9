package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
)

// InvokeCommand 向车辆下发指令
// POST /api/vehicles/:vin/commands/:name
// 请求体必须包含 command 判别字段，其余键随指令而异
func (h *Handler) InvokeCommand(c *gin.Context) {
	vin := c.Param("vin")
	name := c.Param("name")

	args := garage.CommandArgs{}
	if err := c.BindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, ok := h.garage.Get(vin); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	err := h.connector.InvokeCommand(c.Request.Context(), vin, name, args)
	if err != nil {
		h.logger.Warn("command failed", zap.String("vin", vin),
			zap.String("command", name), zap.Error(err))
		c.JSON(commandErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Command accepted",
		"vin":     vin,
		"command": name,
	})
}

// commandErrorStatus 指令错误到 HTTP 状态码的映射
// 参数错误和未注册指令算客户端错误，厂商拒绝算网关错误
func commandErrorStatus(err error) int {
	var (
		setter  *apierr.SetterError
		cmd     *apierr.CommandError
		unknown *garage.UnknownCommandError
	)
	switch {
	case errors.As(err, &setter), errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.As(err, &cmd):
		if cmd.StatusCode != 0 {
			return http.StatusBadGateway
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
