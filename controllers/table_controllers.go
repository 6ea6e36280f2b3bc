package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-reservations/models"
	"github.com/yeremiapane/table-reservations/utils"
	"gorm.io/gorm"
)

// TableController exposes the floor plan read-only so callers can pick a
// table number. Tables are managed outside this service.
type TableController struct {
	DB *gorm.DB
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db}
}

// GetAllTables -> GET /tables, optionally ?minCapacity=
func (tc *TableController) GetAllTables(c *gin.Context) {
	var query struct {
		MinCapacity int `form:"minCapacity" binding:"omitempty,min=1"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	q := tc.DB.WithContext(c.Request.Context()).Preload("Host").Preload("Location").Order("number")
	if query.MinCapacity > 0 {
		q = q.Where("capacity >= ?", query.MinCapacity)
	}

	var tables []models.Table
	if err := q.Find(&tables).Error; err != nil {
		internalError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}
