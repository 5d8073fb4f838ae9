package service

import (
	"time"

	"github.com/rewear/rewear/internal/models"
)

type CreateSwapRequestRequest struct {
	RequesterID     string `json:"requesterId"`
	ProviderID      string `json:"providerId"`
	RequestedItemID string `json:"requestedItemId"`
	OfferedItemID   string `json:"offeredItemId,omitempty"`
	Message         string `json:"message,omitempty"`
}

// SwapResponse is returned by every operation that yields a single swap.
type SwapResponse struct {
	Swap               *models.Swap `json:"swap"`
	ProgressPercentage int          `json:"progressPercentage"`
}

func newSwapResponse(sw *models.Swap) *SwapResponse {
	return &SwapResponse{Swap: sw, ProgressPercentage: sw.ProgressPercentage()}
}

// Response values accepted by RespondToSwap.
const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
)

type RespondToSwapRequest struct {
	SwapID   string `json:"swapId"`
	UserID   string `json:"userId"`
	Response string `json:"response"`
	Message  string `json:"message,omitempty"`
}

type SelectExchangeMethodRequest struct {
	SwapID         string                 `json:"swapId"`
	UserID         string                 `json:"userId"`
	ExchangeMethod *models.ExchangeMethod `json:"exchangeMethod"`
}

type ConfirmItemPreparedRequest struct {
	SwapID string   `json:"swapId"`
	UserID string   `json:"userId"`
	Photos []string `json:"photos,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

type ConfirmItemSentRequest struct {
	SwapID            string     `json:"swapId"`
	UserID            string     `json:"userId"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	ShippingService   string     `json:"shippingService,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

type ConfirmItemReceivedRequest struct {
	SwapID             string   `json:"swapId"`
	UserID             string   `json:"userId"`
	Condition          string   `json:"condition"`
	SatisfactionRating *int     `json:"satisfactionRating,omitempty"`
	Photos             []string `json:"photos,omitempty"`
}

type MarkDeliveredRequest struct {
	SwapID string `json:"swapId"`
	UserID string `json:"userId"`
}

type UpdateTrackingRequest struct {
	SwapID  string   `json:"swapId"`
	UserID  string   `json:"userId"`
	Updates []string `json:"updates"`
}

// CompleteSwapRequest may omit UserID for system-initiated completion.
type CompleteSwapRequest struct {
	SwapID string `json:"swapId"`
	UserID string `json:"userId,omitempty"`
}

type DisputeSwapRequest struct {
	SwapID   string   `json:"swapId"`
	UserID   string   `json:"userId"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence,omitempty"`
}

type DisputeSwapResponse struct {
	Swap               *models.Swap `json:"swap"`
	ProgressPercentage int          `json:"progressPercentage"`
	DisputeID          string       `json:"disputeId"`
}

type CancelSwapRequest struct {
	SwapID string `json:"swapId"`
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

type GetSwapRequest struct {
	SwapID string `json:"swapId"`
}

type ListSwapsRequest struct {
	UserID string `json:"userId"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListSwapsResponse struct {
	Swaps []*SwapResponse `json:"swaps"`
}

type GetUserStatsRequest struct {
	UserID string `json:"userId"`
}

type GetUserStatsResponse struct {
	Stats *models.UserStats `json:"stats"`
}

// Evidence photo stages accepted by RequestPhotoUpload.
const (
	StageBeforeShipping = "before_shipping"
	StageAfterReceiving = "after_receiving"
)

type RequestPhotoUploadRequest struct {
	SwapID      string `json:"swapId"`
	UserID      string `json:"userId"`
	Stage       string `json:"stage"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type RequestPhotoUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}
