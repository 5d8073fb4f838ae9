package service

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

// SwapServiceName is the fully-qualified name of the swap RPC service.
const SwapServiceName = "rewear.v1.SwapService"

// Procedure paths, one per unary RPC.
const (
	CreateSwapRequestProcedure    = "/" + SwapServiceName + "/CreateSwapRequest"
	RespondToSwapProcedure        = "/" + SwapServiceName + "/RespondToSwap"
	SelectExchangeMethodProcedure = "/" + SwapServiceName + "/SelectExchangeMethod"
	ConfirmItemPreparedProcedure  = "/" + SwapServiceName + "/ConfirmItemPrepared"
	ConfirmItemSentProcedure      = "/" + SwapServiceName + "/ConfirmItemSent"
	ConfirmItemReceivedProcedure  = "/" + SwapServiceName + "/ConfirmItemReceived"
	MarkDeliveredProcedure        = "/" + SwapServiceName + "/MarkDelivered"
	UpdateTrackingProcedure       = "/" + SwapServiceName + "/UpdateTracking"
	CompleteSwapProcedure         = "/" + SwapServiceName + "/CompleteSwap"
	DisputeSwapProcedure          = "/" + SwapServiceName + "/DisputeSwap"
	CancelSwapProcedure           = "/" + SwapServiceName + "/CancelSwap"
	GetSwapProcedure              = "/" + SwapServiceName + "/GetSwap"
	ListSwapsProcedure            = "/" + SwapServiceName + "/ListSwaps"
	GetUserStatsProcedure         = "/" + SwapServiceName + "/GetUserStats"
	RequestPhotoUploadProcedure   = "/" + SwapServiceName + "/RequestPhotoUpload"
)

// jsonCodec carries plain Go structs as JSON. It replaces connect's default
// protojson codec under the same "json" name, so application/json clients
// (browsers, curl) work unchanged.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// NewSwapServiceHandler builds an HTTP handler serving every SwapService
// procedure. It returns the path prefix to mount the handler on.
func NewSwapServiceHandler(svc *SwapService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateSwapRequestProcedure, connect.NewUnaryHandler(CreateSwapRequestProcedure, svc.CreateSwapRequest, opts...))
	mux.Handle(RespondToSwapProcedure, connect.NewUnaryHandler(RespondToSwapProcedure, svc.RespondToSwap, opts...))
	mux.Handle(SelectExchangeMethodProcedure, connect.NewUnaryHandler(SelectExchangeMethodProcedure, svc.SelectExchangeMethod, opts...))
	mux.Handle(ConfirmItemPreparedProcedure, connect.NewUnaryHandler(ConfirmItemPreparedProcedure, svc.ConfirmItemPrepared, opts...))
	mux.Handle(ConfirmItemSentProcedure, connect.NewUnaryHandler(ConfirmItemSentProcedure, svc.ConfirmItemSent, opts...))
	mux.Handle(ConfirmItemReceivedProcedure, connect.NewUnaryHandler(ConfirmItemReceivedProcedure, svc.ConfirmItemReceived, opts...))
	mux.Handle(MarkDeliveredProcedure, connect.NewUnaryHandler(MarkDeliveredProcedure, svc.MarkDelivered, opts...))
	mux.Handle(UpdateTrackingProcedure, connect.NewUnaryHandler(UpdateTrackingProcedure, svc.UpdateTracking, opts...))
	mux.Handle(CompleteSwapProcedure, connect.NewUnaryHandler(CompleteSwapProcedure, svc.CompleteSwap, opts...))
	mux.Handle(DisputeSwapProcedure, connect.NewUnaryHandler(DisputeSwapProcedure, svc.DisputeSwap, opts...))
	mux.Handle(CancelSwapProcedure, connect.NewUnaryHandler(CancelSwapProcedure, svc.CancelSwap, opts...))
	mux.Handle(GetSwapProcedure, connect.NewUnaryHandler(GetSwapProcedure, svc.GetSwap, opts...))
	mux.Handle(ListSwapsProcedure, connect.NewUnaryHandler(ListSwapsProcedure, svc.ListSwaps, opts...))
	mux.Handle(GetUserStatsProcedure, connect.NewUnaryHandler(GetUserStatsProcedure, svc.GetUserStats, opts...))
	mux.Handle(RequestPhotoUploadProcedure, connect.NewUnaryHandler(RequestPhotoUploadProcedure, svc.RequestPhotoUpload, opts...))

	return "/" + SwapServiceName + "/", mux
}

// SwapServiceClient is a client for the SwapService.
type SwapServiceClient struct {
	createSwapRequest    *connect.Client[CreateSwapRequestRequest, SwapResponse]
	respondToSwap        *connect.Client[RespondToSwapRequest, SwapResponse]
	selectExchangeMethod *connect.Client[SelectExchangeMethodRequest, SwapResponse]
	confirmItemPrepared  *connect.Client[ConfirmItemPreparedRequest, SwapResponse]
	confirmItemSent      *connect.Client[ConfirmItemSentRequest, SwapResponse]
	confirmItemReceived  *connect.Client[ConfirmItemReceivedRequest, SwapResponse]
	markDelivered        *connect.Client[MarkDeliveredRequest, SwapResponse]
	updateTracking       *connect.Client[UpdateTrackingRequest, SwapResponse]
	completeSwap         *connect.Client[CompleteSwapRequest, SwapResponse]
	disputeSwap          *connect.Client[DisputeSwapRequest, DisputeSwapResponse]
	cancelSwap           *connect.Client[CancelSwapRequest, SwapResponse]
	getSwap              *connect.Client[GetSwapRequest, SwapResponse]
	listSwaps            *connect.Client[ListSwapsRequest, ListSwapsResponse]
	getUserStats         *connect.Client[GetUserStatsRequest, GetUserStatsResponse]
	requestPhotoUpload   *connect.Client[RequestPhotoUploadRequest, RequestPhotoUploadResponse]
}

// NewSwapServiceClient constructs a client for the SwapService at baseURL.
func NewSwapServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SwapServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &SwapServiceClient{
		createSwapRequest:    connect.NewClient[CreateSwapRequestRequest, SwapResponse](httpClient, baseURL+CreateSwapRequestProcedure, opts...),
		respondToSwap:        connect.NewClient[RespondToSwapRequest, SwapResponse](httpClient, baseURL+RespondToSwapProcedure, opts...),
		selectExchangeMethod: connect.NewClient[SelectExchangeMethodRequest, SwapResponse](httpClient, baseURL+SelectExchangeMethodProcedure, opts...),
		confirmItemPrepared:  connect.NewClient[ConfirmItemPreparedRequest, SwapResponse](httpClient, baseURL+ConfirmItemPreparedProcedure, opts...),
		confirmItemSent:      connect.NewClient[ConfirmItemSentRequest, SwapResponse](httpClient, baseURL+ConfirmItemSentProcedure, opts...),
		confirmItemReceived:  connect.NewClient[ConfirmItemReceivedRequest, SwapResponse](httpClient, baseURL+ConfirmItemReceivedProcedure, opts...),
		markDelivered:        connect.NewClient[MarkDeliveredRequest, SwapResponse](httpClient, baseURL+MarkDeliveredProcedure, opts...),
		updateTracking:       connect.NewClient[UpdateTrackingRequest, SwapResponse](httpClient, baseURL+UpdateTrackingProcedure, opts...),
		completeSwap:         connect.NewClient[CompleteSwapRequest, SwapResponse](httpClient, baseURL+CompleteSwapProcedure, opts...),
		disputeSwap:          connect.NewClient[DisputeSwapRequest, DisputeSwapResponse](httpClient, baseURL+DisputeSwapProcedure, opts...),
		cancelSwap:           connect.NewClient[CancelSwapRequest, SwapResponse](httpClient, baseURL+CancelSwapProcedure, opts...),
		getSwap:              connect.NewClient[GetSwapRequest, SwapResponse](httpClient, baseURL+GetSwapProcedure, opts...),
		listSwaps:            connect.NewClient[ListSwapsRequest, ListSwapsResponse](httpClient, baseURL+ListSwapsProcedure, opts...),
		getUserStats:         connect.NewClient[GetUserStatsRequest, GetUserStatsResponse](httpClient, baseURL+GetUserStatsProcedure, opts...),
		requestPhotoUpload:   connect.NewClient[RequestPhotoUploadRequest, RequestPhotoUploadResponse](httpClient, baseURL+RequestPhotoUploadProcedure, opts...),
	}
}

func (c *SwapServiceClient) CreateSwapRequest(ctx context.Context, req *connect.Request[CreateSwapRequestRequest]) (*connect.Response[SwapResponse], error) {
	return c.createSwapRequest.CallUnary(ctx, req)
}

func (c *SwapServiceClient) RespondToSwap(ctx context.Context, req *connect.Request[RespondToSwapRequest]) (*connect.Response[SwapResponse], error) {
	return c.respondToSwap.CallUnary(ctx, req)
}

func (c *SwapServiceClient) SelectExchangeMethod(ctx context.Context, req *connect.Request[SelectExchangeMethodRequest]) (*connect.Response[SwapResponse], error) {
	return c.selectExchangeMethod.CallUnary(ctx, req)
}

func (c *SwapServiceClient) ConfirmItemPrepared(ctx context.Context, req *connect.Request[ConfirmItemPreparedRequest]) (*connect.Response[SwapResponse], error) {
	return c.confirmItemPrepared.CallUnary(ctx, req)
}

func (c *SwapServiceClient) ConfirmItemSent(ctx context.Context, req *connect.Request[ConfirmItemSentRequest]) (*connect.Response[SwapResponse], error) {
	return c.confirmItemSent.CallUnary(ctx, req)
}

func (c *SwapServiceClient) ConfirmItemReceived(ctx context.Context, req *connect.Request[ConfirmItemReceivedRequest]) (*connect.Response[SwapResponse], error) {
	return c.confirmItemReceived.CallUnary(ctx, req)
}

func (c *SwapServiceClient) MarkDelivered(ctx context.Context, req *connect.Request[MarkDeliveredRequest]) (*connect.Response[SwapResponse], error) {
	return c.markDelivered.CallUnary(ctx, req)
}

func (c *SwapServiceClient) UpdateTracking(ctx context.Context, req *connect.Request[UpdateTrackingRequest]) (*connect.Response[SwapResponse], error) {
	return c.updateTracking.CallUnary(ctx, req)
}

func (c *SwapServiceClient) CompleteSwap(ctx context.Context, req *connect.Request[CompleteSwapRequest]) (*connect.Response[SwapResponse], error) {
	return c.completeSwap.CallUnary(ctx, req)
}

func (c *SwapServiceClient) DisputeSwap(ctx context.Context, req *connect.Request[DisputeSwapRequest]) (*connect.Response[DisputeSwapResponse], error) {
	return c.disputeSwap.CallUnary(ctx, req)
}

func (c *SwapServiceClient) CancelSwap(ctx context.Context, req *connect.Request[CancelSwapRequest]) (*connect.Response[SwapResponse], error) {
	return c.cancelSwap.CallUnary(ctx, req)
}

func (c *SwapServiceClient) GetSwap(ctx context.Context, req *connect.Request[GetSwapRequest]) (*connect.Response[SwapResponse], error) {
	return c.getSwap.CallUnary(ctx, req)
}

func (c *SwapServiceClient) ListSwaps(ctx context.Context, req *connect.Request[ListSwapsRequest]) (*connect.Response[ListSwapsResponse], error) {
	return c.listSwaps.CallUnary(ctx, req)
}

func (c *SwapServiceClient) GetUserStats(ctx context.Context, req *connect.Request[GetUserStatsRequest]) (*connect.Response[GetUserStatsResponse], error) {
	return c.getUserStats.CallUnary(ctx, req)
}

func (c *SwapServiceClient) RequestPhotoUpload(ctx context.Context, req *connect.Request[RequestPhotoUploadRequest]) (*connect.Response[RequestPhotoUploadResponse], error) {
	return c.requestPhotoUpload.CallUnary(ctx, req)
}
