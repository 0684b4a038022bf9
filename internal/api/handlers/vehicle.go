package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListVehicles 获取车辆列表
func (h *Handler) ListVehicles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.connector.Snapshots()})
}

// GetVehicle 获取车辆详情
func (h *Handler) GetVehicle(c *gin.Context) {
	snap, ok := h.connector.Snapshot(c.Param("vin"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// GetCapabilities 获取车辆能力列表
func (h *Handler) GetCapabilities(c *gin.Context) {
	v, ok := h.garage.Get(c.Param("vin"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": v.CapabilityIDs()})
}
