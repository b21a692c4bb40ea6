package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	address string
	chainID int64
}

func NewHealthHandler(address string, chainID int64) *HealthHandler {
	return &HealthHandler{address: address, chainID: chainID}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "polychat",
		"address":  h.address,
		"chain_id": h.chainID,
	})
}
