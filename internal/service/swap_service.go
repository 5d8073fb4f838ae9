package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/rewear/rewear/internal/lifecycle"
	"github.com/rewear/rewear/internal/media"
	"github.com/rewear/rewear/internal/middleware"
	"github.com/rewear/rewear/internal/models"
	"github.com/rewear/rewear/internal/observability"
	"github.com/rewear/rewear/internal/storage"
)

// maxMutationAttempts bounds the optimistic update retry loop.
const maxMutationAttempts = 5

// PhotoSigner issues upload URLs for evidence photos.
type PhotoSigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (*media.Upload, error)
}

// SwapService implements the Connect SwapService.
type SwapService struct {
	store   storage.Store
	machine *lifecycle.Machine
	metrics *observability.Metrics
	photos  PhotoSigner
	now     func() time.Time
}

// Option configures a SwapService.
type Option func(*SwapService)

// WithPolicy sets the lifecycle policy.
func WithPolicy(p lifecycle.Policy) Option {
	return func(s *SwapService) { s.machine = lifecycle.New(p) }
}

// WithMetrics enables lifecycle metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *SwapService) { s.metrics = m }
}

// WithPhotoSigner enables RequestPhotoUpload.
func WithPhotoSigner(p PhotoSigner) Option {
	return func(s *SwapService) { s.photos = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SwapService) { s.now = now }
}

// NewSwapService creates a new SwapService with the given storage backend.
func NewSwapService(store storage.Store, opts ...Option) *SwapService {
	s := &SwapService{
		store:   store,
		machine: lifecycle.New(lifecycle.DefaultPolicy()),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// callerID resolves the acting user. An authenticated caller is authoritative:
// a different requested ID is Forbidden and an empty one is filled in.
func callerID(ctx context.Context, requested string) (string, error) {
	authed := middleware.GetUserID(ctx)
	switch {
	case authed == "" && requested == "":
		return "", fmt.Errorf("%w: userId is required", models.ErrValidation)
	case authed == "":
		return requested, nil
	case requested == "" || requested == authed:
		return authed, nil
	default:
		return "", fmt.Errorf("%w: userId %q does not match the authenticated caller", models.ErrForbidden, requested)
	}
}

type mutation func(sw *models.Swap, now time.Time) (lifecycle.Result, error)

// mutate runs one read-modify-write cycle against a swap, retrying from fresh
// state when another writer saved first. The expiry policy runs before op;
// an expired swap is saved and op fails with Conflict.
func (s *SwapService) mutate(ctx context.Context, swapID, actor string, op mutation) (*models.Swap, lifecycle.Result, error) {
	if strings.TrimSpace(swapID) == "" {
		return nil, lifecycle.Result{}, fmt.Errorf("%w: swapId is required", models.ErrValidation)
	}

	for attempt := 1; ; attempt++ {
		sw, err := s.store.GetSwap(ctx, swapID)
		if err != nil {
			return nil, lifecycle.Result{}, err
		}
		now := s.now()

		expired, err := s.machine.ApplyExpiry(sw, actor, now)
		if err != nil {
			return nil, lifecycle.Result{}, err
		}
		if expired.Changed {
			sw.UpdatedAt = now
			if err := s.store.UpdateSwap(ctx, sw, nil); err != nil {
				if s.retryable(err, swapID, attempt) {
					continue
				}
				return nil, lifecycle.Result{}, err
			}
			s.record(expired)
			s.metrics.RecordExpiry(string(sw.Status))
			slog.Info("Swap expired", "swap_id", swapID, "status", sw.Status)
			return nil, lifecycle.Result{}, fmt.Errorf("%w: swap %s expired and is now %s", models.ErrConflict, swapID, sw.Status)
		}

		res, err := op(sw, now)
		if err != nil {
			return nil, lifecycle.Result{}, err
		}
		if !res.Changed {
			return sw, res, nil
		}

		sw.UpdatedAt = now
		if err := s.store.UpdateSwap(ctx, sw, res.Credits); err != nil {
			if s.retryable(err, swapID, attempt) {
				continue
			}
			return nil, lifecycle.Result{}, err
		}
		s.record(res)
		return sw, res, nil
	}
}

func (s *SwapService) retryable(err error, swapID string, attempt int) bool {
	if !errors.Is(err, models.ErrVersionConflict) || attempt >= maxMutationAttempts {
		return false
	}
	s.metrics.RecordVersionConflict()
	slog.Debug("Retrying swap update after version conflict", "swap_id", swapID, "attempt", attempt)
	return true
}

func (s *SwapService) record(res lifecycle.Result) {
	for _, t := range res.Transitions {
		s.metrics.RecordTransition(string(t.To), t.Automatic)
	}
	for _, c := range res.Credits {
		s.metrics.RecordSettlement(c.Points, c.CarbonSaved)
	}
}

// mutateSwap is the common handler path for operations returning one swap.
func (s *SwapService) mutateSwap(ctx context.Context, procedure, swapID, requestedUserID string, op func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error)) (*connect.Response[SwapResponse], error) {
	userID, err := callerID(ctx, requestedUserID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	slog.Info(procedure+" request received", "swap_id", swapID, "user_id", userID)

	sw, res, err := s.mutate(ctx, swapID, userID, func(sw *models.Swap, now time.Time) (lifecycle.Result, error) {
		return op(sw, userID, now)
	})
	if err != nil {
		return nil, toConnectError(procedure, err)
	}

	if len(res.Transitions) > 0 {
		slog.Info(procedure+" succeeded", "swap_id", sw.SwapID, "status", sw.Status, "transitions", len(res.Transitions))
	}
	return connect.NewResponse(newSwapResponse(sw)), nil
}

// CreateSwapRequest opens a new pending swap between two users.
func (s *SwapService) CreateSwapRequest(ctx context.Context, req *connect.Request[CreateSwapRequestRequest]) (*connect.Response[SwapResponse], error) {
	const procedure = "CreateSwapRequest"
	msg := req.Msg

	requesterID, err := callerID(ctx, msg.RequesterID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	slog.Info(procedure+" request received",
		"requester_id", requesterID,
		"provider_id", msg.ProviderID,
		"requested_item_id", msg.RequestedItemID,
		"offered_item_id", msg.OfferedItemID,
	)

	requester, provider, err := s.resolveParties(ctx, requesterID, msg)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}

	sw, err := s.machine.Create(requester, provider, msg.Message, s.now())
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	if err := s.store.CreateSwap(ctx, sw); err != nil {
		return nil, toConnectError(procedure, err)
	}
	s.metrics.RecordSwapCreated()

	slog.Info("Swap created", "swap_id", sw.SwapID, "requester_id", requesterID, "provider_id", provider.UserID)
	return connect.NewResponse(newSwapResponse(sw)), nil
}

// resolveParties snapshots both users and items from the directory.
// Without an offered item the requester pays in points.
func (s *SwapService) resolveParties(ctx context.Context, requesterID string, msg *CreateSwapRequestRequest) (models.Party, models.Party, error) {
	var none models.Party
	if msg.ProviderID == "" || msg.RequestedItemID == "" {
		return none, none, fmt.Errorf("%w: providerId and requestedItemId are required", models.ErrValidation)
	}
	if requesterID == msg.ProviderID {
		return none, none, models.ErrSelfSwap
	}

	requesterUser, err := s.store.GetUser(ctx, requesterID)
	if err != nil {
		return none, none, err
	}
	providerUser, err := s.store.GetUser(ctx, msg.ProviderID)
	if err != nil {
		return none, none, err
	}

	requested, err := s.store.GetItem(ctx, msg.RequestedItemID)
	if err != nil {
		return none, none, err
	}
	if requested.OwnerID != msg.ProviderID {
		return none, none, fmt.Errorf("%w: item %s does not belong to %s", models.ErrValidation, requested.ID, msg.ProviderID)
	}

	offered := models.ItemSnapshot{
		ItemID: requested.ID,
		Title:  "Points Exchange",
		Images: []string{},
	}
	if msg.OfferedItemID != "" {
		item, err := s.store.GetItem(ctx, msg.OfferedItemID)
		if err != nil {
			return none, none, err
		}
		if item.OwnerID != requesterID {
			return none, none, fmt.Errorf("%w: item %s does not belong to %s", models.ErrValidation, item.ID, requesterID)
		}
		offered = snapshot(item)
	}

	requester := models.Party{UserID: requesterUser.ID, Username: requesterUser.Username, Item: offered}
	provider := models.Party{UserID: providerUser.ID, Username: providerUser.Username, Item: snapshot(requested)}
	return requester, provider, nil
}

func snapshot(item *models.CatalogItem) models.ItemSnapshot {
	images := append([]string{}, item.Images...)
	return models.ItemSnapshot{
		ItemID:         item.ID,
		Title:          item.Title,
		Images:         images,
		EstimatedValue: item.Price,
		CarbonSaving:   item.CarbonSavingEstimate,
	}
}

// RespondToSwap lets the provider accept or decline a pending request.
func (s *SwapService) RespondToSwap(ctx context.Context, req *connect.Request[RespondToSwapRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	var accept bool
	switch strings.ToLower(strings.TrimSpace(msg.Response)) {
	case ResponseAccept:
		accept = true
	case ResponseDecline:
	default:
		err := fmt.Errorf("%w: response must be %q or %q", models.ErrValidation, ResponseAccept, ResponseDecline)
		return nil, toConnectError("RespondToSwap", err)
	}

	return s.mutateSwap(ctx, "RespondToSwap", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.Respond(sw, userID, accept, msg.Message, now)
	})
}

// SelectExchangeMethod records how the items will change hands.
func (s *SwapService) SelectExchangeMethod(ctx context.Context, req *connect.Request[SelectExchangeMethodRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	return s.mutateSwap(ctx, "SelectExchangeMethod", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.SelectExchangeMethod(sw, userID, msg.ExchangeMethod, now)
	})
}

// ConfirmItemPrepared records that the caller's item is ready.
func (s *SwapService) ConfirmItemPrepared(ctx context.Context, req *connect.Request[ConfirmItemPreparedRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	return s.mutateSwap(ctx, "ConfirmItemPrepared", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.ConfirmPrepared(sw, userID, msg.Photos, msg.Notes, now)
	})
}

// ConfirmItemSent records that the caller has shipped or handed over its item.
func (s *SwapService) ConfirmItemSent(ctx context.Context, req *connect.Request[ConfirmItemSentRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	in := lifecycle.SentConfirmation{
		TrackingNumber:    msg.TrackingNumber,
		ShippingService:   msg.ShippingService,
		EstimatedDelivery: msg.EstimatedDelivery,
	}
	return s.mutateSwap(ctx, "ConfirmItemSent", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.ConfirmSent(sw, userID, in, now)
	})
}

// ConfirmItemReceived records receipt, rating and condition.
func (s *SwapService) ConfirmItemReceived(ctx context.Context, req *connect.Request[ConfirmItemReceivedRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	in := lifecycle.ReceivedConfirmation{
		Condition:          msg.Condition,
		SatisfactionRating: msg.SatisfactionRating,
		Photos:             msg.Photos,
	}
	return s.mutateSwap(ctx, "ConfirmItemReceived", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.ConfirmReceived(sw, userID, in, now)
	})
}

// MarkDelivered records carrier delivery of both items.
func (s *SwapService) MarkDelivered(ctx context.Context, req *connect.Request[MarkDeliveredRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	return s.mutateSwap(ctx, "MarkDelivered", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.MarkDelivered(sw, userID, now)
	})
}

// UpdateTracking appends carrier updates to the timeline.
func (s *SwapService) UpdateTracking(ctx context.Context, req *connect.Request[UpdateTrackingRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	return s.mutateSwap(ctx, "UpdateTracking", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.UpdateTracking(sw, userID, msg.Updates, now)
	})
}

// CompleteSwap settles a confirmed swap. It is idempotent: completing an
// already-completed swap returns it unchanged.
func (s *SwapService) CompleteSwap(ctx context.Context, req *connect.Request[CompleteSwapRequest]) (*connect.Response[SwapResponse], error) {
	const procedure = "CompleteSwap"
	msg := req.Msg

	// An empty actor is a system-initiated completion.
	actor := msg.UserID
	if authed := middleware.GetUserID(ctx); authed != "" {
		var err error
		if actor, err = callerID(ctx, msg.UserID); err != nil {
			return nil, toConnectError(procedure, err)
		}
	}
	slog.Info(procedure+" request received", "swap_id", msg.SwapID, "user_id", actor)

	sw, res, err := s.mutate(ctx, msg.SwapID, actor, func(sw *models.Swap, now time.Time) (lifecycle.Result, error) {
		return s.machine.Complete(sw, actor, now)
	})
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	if res.Changed {
		slog.Info("Swap completed",
			"swap_id", sw.SwapID,
			"requester_points", sw.PointsCalculation.TotalPoints.Requester,
			"provider_points", sw.PointsCalculation.TotalPoints.Provider,
			"carbon_saved", sw.EnvironmentalImpact.TotalCarbonSaved,
		)
	}
	return connect.NewResponse(newSwapResponse(sw)), nil
}

// DisputeSwap freezes a swap pending manual resolution.
func (s *SwapService) DisputeSwap(ctx context.Context, req *connect.Request[DisputeSwapRequest]) (*connect.Response[DisputeSwapResponse], error) {
	msg := req.Msg
	resp, err := s.mutateSwap(ctx, "DisputeSwap", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.Dispute(sw, userID, msg.Reason, msg.Evidence, now)
	})
	if err != nil {
		return nil, err
	}

	sw := resp.Msg.Swap
	disputeID := lifecycle.DisputeReference(sw.SwapID, sw.DisputeResolution.DisputeTimestamp)
	slog.Warn("Swap disputed", "swap_id", sw.SwapID, "dispute_id", disputeID, "disputed_by", sw.DisputeResolution.DisputedBy)

	return connect.NewResponse(&DisputeSwapResponse{
		Swap:               sw,
		ProgressPercentage: resp.Msg.ProgressPercentage,
		DisputeID:          disputeID,
	}), nil
}

// CancelSwap withdraws a swap before logistics are agreed.
func (s *SwapService) CancelSwap(ctx context.Context, req *connect.Request[CancelSwapRequest]) (*connect.Response[SwapResponse], error) {
	msg := req.Msg
	return s.mutateSwap(ctx, "CancelSwap", msg.SwapID, msg.UserID, func(sw *models.Swap, userID string, now time.Time) (lifecycle.Result, error) {
		return s.machine.Cancel(sw, userID, msg.Reason, now)
	})
}

// GetSwap retrieves a swap by ID. An authenticated caller must be a party.
func (s *SwapService) GetSwap(ctx context.Context, req *connect.Request[GetSwapRequest]) (*connect.Response[SwapResponse], error) {
	const procedure = "GetSwap"
	if req.Msg.SwapID == "" {
		return nil, toConnectError(procedure, fmt.Errorf("%w: swapId is required", models.ErrValidation))
	}

	sw, err := s.store.GetSwap(ctx, req.Msg.SwapID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	if userID := middleware.GetUserID(ctx); userID != "" && !sw.IsParty(userID) {
		err := fmt.Errorf("%w: user %q is not a party to swap %s", models.ErrForbidden, userID, sw.SwapID)
		return nil, toConnectError(procedure, err)
	}

	return connect.NewResponse(newSwapResponse(sw)), nil
}

// ListSwaps returns a user's swaps, newest first.
func (s *SwapService) ListSwaps(ctx context.Context, req *connect.Request[ListSwapsRequest]) (*connect.Response[ListSwapsResponse], error) {
	const procedure = "ListSwaps"
	msg := req.Msg

	userID, err := callerID(ctx, msg.UserID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}

	var status models.SwapStatus
	if msg.Status != "" {
		if status, err = models.ParseSwapStatus(msg.Status); err != nil {
			return nil, toConnectError(procedure, err)
		}
	}

	swaps, err := s.store.ListSwapsByUser(ctx, userID, status, storage.ClampLimit(msg.Limit))
	if err != nil {
		return nil, toConnectError(procedure, err)
	}

	out := make([]*SwapResponse, len(swaps))
	for i, sw := range swaps {
		out[i] = newSwapResponse(sw)
	}
	slog.Debug(procedure+" succeeded", "user_id", userID, "status", status, "count", len(out))
	return connect.NewResponse(&ListSwapsResponse{Swaps: out}), nil
}

// GetUserStats returns a user's settled gamification totals.
func (s *SwapService) GetUserStats(ctx context.Context, req *connect.Request[GetUserStatsRequest]) (*connect.Response[GetUserStatsResponse], error) {
	const procedure = "GetUserStats"
	if req.Msg.UserID == "" {
		return nil, toConnectError(procedure, fmt.Errorf("%w: userId is required", models.ErrValidation))
	}

	stats, err := s.store.GetUserStats(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	return connect.NewResponse(&GetUserStatsResponse{Stats: stats}), nil
}

// RequestPhotoUpload issues a presigned URL for one evidence photo. The
// returned object key is what the client later passes as a photo reference.
func (s *SwapService) RequestPhotoUpload(ctx context.Context, req *connect.Request[RequestPhotoUploadRequest]) (*connect.Response[RequestPhotoUploadResponse], error) {
	const procedure = "RequestPhotoUpload"
	msg := req.Msg

	if s.photos == nil {
		return nil, toConnectError(procedure, fmt.Errorf("%w: %v", models.ErrConflict, media.ErrDisabled))
	}
	userID, err := callerID(ctx, msg.UserID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	if msg.Stage != StageBeforeShipping && msg.Stage != StageAfterReceiving {
		err := fmt.Errorf("%w: stage must be %q or %q", models.ErrValidation, StageBeforeShipping, StageAfterReceiving)
		return nil, toConnectError(procedure, err)
	}
	if !strings.HasPrefix(msg.ContentType, "image/") {
		err := fmt.Errorf("%w: content type %q is not an image", models.ErrValidation, msg.ContentType)
		return nil, toConnectError(procedure, err)
	}

	sw, err := s.store.GetSwap(ctx, msg.SwapID)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	role, ok := sw.RoleOf(userID)
	if !ok {
		err := fmt.Errorf("%w: user %q is not a party to swap %s", models.ErrForbidden, userID, sw.SwapID)
		return nil, toConnectError(procedure, err)
	}
	if sw.Status.IsTerminal() {
		err := fmt.Errorf("%w: swap %s is %s", models.ErrConflict, sw.SwapID, sw.Status)
		return nil, toConnectError(procedure, err)
	}

	key := media.ObjectKey(sw.SwapID, msg.Stage, string(role), msg.FileName)
	upload, err := s.photos.PresignUpload(ctx, key, msg.ContentType)
	if err != nil {
		return nil, toConnectError(procedure, err)
	}
	s.metrics.RecordPhotoUpload(msg.Stage)

	slog.Info("Photo upload signed", "swap_id", sw.SwapID, "user_id", userID, "stage", msg.Stage, "key", key)
	return connect.NewResponse(&RequestPhotoUploadResponse{
		UploadURL: upload.URL,
		ObjectKey: upload.Key,
		Method:    upload.Method,
		ExpiresAt: upload.ExpiresAt,
	}), nil
}
