package lothandler

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateLotBody struct {
	Name         string          `json:"name"          binding:"required"       example:"Red Rose"`
	Category     string          `json:"category"      binding:"required"       example:"Romantic"`
	Size         int             `json:"size"          binding:"gte=0"          example:"40"`
	Quantity     string          `json:"quantity"                               example:"12 stems"`
	LotNumber    int             `json:"lot_number"    binding:"gte=0"          example:"7"`
	InitialPrice decimal.Decimal `json:"initial_price" binding:"required"       example:"100"`
	StartsAt     time.Time       `json:"starts_at"     binding:"required"       example:"2025-07-27T16:05:05Z"`
	EndsAt       time.Time       `json:"ends_at"       binding:"required"       example:"2025-07-27T17:05:05Z"`
} // @name CreateLotRequest

type PlaceBidBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required" example:"150"`
} // @name PlaceBidRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListLotsQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=UPCOMING LIVE CLOSED"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListLotsQuery
