package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/pkg/config"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
	"github.com/tradebridge-io/tradebridge-backend/pkg/types"
)

type stubRepo struct {
	order *models.Order

	findOrderFn     func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	updateGuardedFn func(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) (int64, error)
	claimFreeFn     func(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error)

	capturedUpdates map[string]any
	updateCalls     int
	claimCalls      int
	history         []models.OrderAssignment
	statusEvents    []models.OrderStatusEvent
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.findOrderFn != nil {
		return s.findOrderFn(ctx, id)
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubRepo) UpdateOrderGuarded(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) (int64, error) {
	s.updateCalls++
	s.capturedUpdates = updates
	if s.updateGuardedFn != nil {
		return s.updateGuardedFn(ctx, orderID, version, updates)
	}
	return 1, nil
}

func (s *stubRepo) AppendStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error {
	s.statusEvents = append(s.statusEvents, *event)
	return nil
}

func (s *stubRepo) AppendAssignment(ctx context.Context, row *models.OrderAssignment) error {
	s.history = append(s.history, *row)
	return nil
}

func (s *stubRepo) ClaimSpecificAssignment(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error) {
	s.capturedUpdates = updates
	return 1, nil
}

func (s *stubRepo) ClaimFreeAssignment(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error) {
	s.claimCalls++
	s.capturedUpdates = updates
	if s.claimFreeFn != nil {
		return s.claimFreeFn(ctx, orderID, transporterID, now, updates)
	}
	return 1, nil
}

func (s *stubRepo) ListExpiredAssignments(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListOrders(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListFreePool(ctx context.Context, now time.Time, returnLeg bool, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListTransporterQueue(ctx context.Context, transporterID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error) {
	return s.statusEvents, nil
}

func (s *stubRepo) ListAssignments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error) {
	return s.history, nil
}

type stubRunner struct{}

func (stubRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubRefunds struct {
	calls int
}

func (s *stubRefunds) IssueRefund(ctx context.Context, order *models.Order) error {
	s.calls++
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func eventTypes(events []outbox.DomainEvent) []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func openDispute(at time.Time) *types.DisputeDetails {
	return &types.DisputeDetails{
		DisputedBy:   uuid.New(),
		DisputedRole: enums.ActorRoleRetailer.String(),
		DisputedAt:   at,
		Reason:       "damaged on arrival",
	}
}

func retailOrder(status enums.OrderStatus) (*models.Order, uuid.UUID, uuid.UUID) {
	retailerStore := uuid.New()
	wholesalerStore := uuid.New()
	return &models.Order{
		ID:                uuid.New(),
		OrderNumber:       1001,
		Family:            enums.OrderFamilyRetail,
		RetailerStoreID:   &retailerStore,
		WholesalerStoreID: wholesalerStore,
		Status:            status,
		TotalCents:        125000,
		FinalCents:        125000,
		Version:           3,
	}, retailerStore, wholesalerStore
}

func newTestService(repo *stubRepo) (Service, *stubEmitter, *stubRefunds) {
	emitter := &stubEmitter{}
	refunds := &stubRefunds{}
	svc := NewService(stubRunner{}, repo, emitter, refunds, testLogger(), config.AssignmentConfig{
		DefaultTTLMinutes: 30,
		MaxTTLMinutes:     1440,
	})
	return svc, emitter, refunds
}

func TestUpdateStatus_WholesalerAcceptsPendingOrder(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusPending)
	repo := &stubRepo{order: order}
	svc, emitter, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAccepted,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusAccepted, repo.capturedUpdates["status"])
	assert.Equal(t, gorm.Expr("version + 1"), repo.capturedUpdates["version"])

	require.Len(t, repo.statusEvents, 1)
	assert.Equal(t, enums.OrderStatusPending, repo.statusEvents[0].FromStatus)
	assert.Equal(t, enums.OrderStatusAccepted, repo.statusEvents[0].ToStatus)

	assert.Contains(t, eventTypes(emitter.events), enums.EventOrderStatusChanged)
}

func TestUpdateStatus_VersionConflictRetriesOnce(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusPending)
	repo := &stubRepo{order: order}
	repo.updateGuardedFn = func(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) (int64, error) {
		return 0, nil
	}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAccepted,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, 2, repo.updateCalls)
}

func TestUpdateStatus_RetrySucceedsAfterConflict(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusPending)
	repo := &stubRepo{order: order}
	attempt := 0
	repo.updateGuardedFn = func(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) (int64, error) {
		attempt++
		if attempt == 1 {
			return 0, nil
		}
		return 1, nil
	}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
}

func TestUpdateStatus_StrangerStoreGetsNotFound(t *testing.T) {
	order, _, _ := retailOrder(enums.OrderStatusPending)
	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	otherStore := uuid.New()
	actor := Actor{ID: uuid.New(), StoreID: &otherStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAccepted,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateStatus_AssignRequiresMode(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusProcessing)
	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAssignedToTransporter,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdateStatus_SpecificAssignmentSetsOffer(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusProcessing)
	repo := &stubRepo{order: order}
	svc, emitter, _ := newTestService(repo)

	transporterID := uuid.New()
	mode := enums.AssignmentModeSpecific
	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status:         enums.OrderStatusAssignedToTransporter,
		AssignmentMode: &mode,
		TransporterID:  &transporterID,
		TTLMinutes:     45,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusAssignedToTransporter, repo.capturedUpdates["status"])
	assert.Equal(t, mode, repo.capturedUpdates["assignment_mode"])
	assert.Equal(t, &transporterID, repo.capturedUpdates["transporter_id"])
	assert.Equal(t, enums.OrderStatusProcessing, repo.capturedUpdates["assignment_prev_status"])
	assert.NotNil(t, repo.capturedUpdates["assignment_expires_at"])

	assert.Contains(t, eventTypes(emitter.events), enums.EventTransporterAssigned)
}

func TestUpdateStatus_TransporterAcceptFailsWhenOfferExpired(t *testing.T) {
	order, _, _ := retailOrder(enums.OrderStatusAssignedToTransporter)
	transporterID := uuid.New()
	mode := enums.AssignmentModeSpecific
	assignedAt := time.Now().Add(-2 * time.Hour)
	expiredAt := time.Now().Add(-time.Hour)
	prev := enums.OrderStatusProcessing
	order.AssignmentMode = &mode
	order.TransporterID = &transporterID
	order.AssignedAt = &assignedAt
	order.AssignmentExpiresAt = &expiredAt
	order.AssignmentPrevStatus = &prev

	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: transporterID, Role: enums.ActorRoleTransporter}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAcceptedByTransporter,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeAssignmentConflict, typed.Code())
}

func TestHandleReturn_AcceptIssuesRefundAndResolvesDispute(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusReturnToWholesaler)
	mode := enums.AssignmentModeSpecific
	transporterID := uuid.New()
	assignedAt := time.Now().Add(-time.Hour)
	order.AssignmentMode = &mode
	order.TransporterID = &transporterID
	order.AssignedAt = &assignedAt
	order.AssignmentReturnLeg = true
	order.DisputeDetails = openDispute(time.Now().Add(-24 * time.Hour))

	repo := &stubRepo{order: order}
	svc, emitter, refunds := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.HandleReturn(context.Background(), actor, order.ID, HandleReturnInput{
		Action: enums.ReturnActionAccept,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusReturnAccepted, repo.capturedUpdates["status"])
	assert.Equal(t, 1, refunds.calls)

	// the verdict lands on the return record, carried over from the dispute
	rd, ok := repo.capturedUpdates["return_details"].(*types.ReturnDetails)
	require.True(t, ok)
	assert.Equal(t, order.DisputeDetails.DisputedBy, rd.ReturnedBy)
	assert.Equal(t, order.DisputeDetails.Reason, rd.ReturnReason)
	assert.NotNil(t, rd.ReturnAcceptedAt)
	assert.Nil(t, rd.ReturnRejectedAt)

	got := eventTypes(emitter.events)
	assert.Contains(t, got, enums.EventReturnResolved)
	assert.Contains(t, got, enums.EventRefundRequested)

	// the return-leg assignment is resolved into history
	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.AssignmentOutcomeAccepted, repo.history[0].Outcome)
	assert.True(t, repo.history[0].ReturnLeg)
}

func TestHandleReturn_RejectKeepsDisputeOpen(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusReturnToWholesaler)
	order.DisputeDetails = openDispute(time.Now().Add(-24 * time.Hour))

	repo := &stubRepo{order: order}
	svc, _, refunds := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.HandleReturn(context.Background(), actor, order.ID, HandleReturnInput{
		Action: enums.ReturnActionReject,
		Reason: "items show normal wear, not damage",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusReturnRejected, repo.capturedUpdates["status"])
	assert.Equal(t, 0, refunds.calls)

	rd, ok := repo.capturedUpdates["return_details"].(*types.ReturnDetails)
	require.True(t, ok)
	assert.Equal(t, order.DisputeDetails.DisputedBy, rd.ReturnedBy)
	assert.Nil(t, rd.ReturnAcceptedAt)
	require.NotNil(t, rd.ReturnRejectedAt)
	require.NotNil(t, rd.ReturnRejectionReason)
	assert.Equal(t, "items show normal wear, not damage", *rd.ReturnRejectionReason)
}

func TestUpdateStatus_DisputeReturnLegRejectsFreeMode(t *testing.T) {
	order, _, wholesalerStore := retailOrder(enums.OrderStatusDisputed)
	order.DisputeDetails = openDispute(time.Now().Add(-time.Hour))

	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	mode := enums.AssignmentModeFree
	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status:         enums.OrderStatusAssignedToTransporter,
		AssignmentMode: &mode,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, 0, repo.updateCalls)
}

func TestUpdateStatus_SupplyReturnClaimUsesFreePoolPredicate(t *testing.T) {
	wholesalerStore := uuid.New()
	supplierStore := uuid.New()
	mode := enums.AssignmentModeFree
	assignedAt := time.Now().Add(-10 * time.Minute)
	expiresAt := time.Now().Add(20 * time.Minute)
	prev := enums.OrderStatusDelivered
	order := &models.Order{
		ID:                   uuid.New(),
		OrderNumber:          2002,
		Family:               enums.OrderFamilySupply,
		WholesalerStoreID:    wholesalerStore,
		SupplierStoreID:      &supplierStore,
		Status:               enums.OrderStatusReturnRequested,
		Version:              5,
		AssignmentMode:       &mode,
		AssignedAt:           &assignedAt,
		AssignmentExpiresAt:  &expiresAt,
		AssignmentReturnLeg:  true,
		AssignmentPrevStatus: &prev,
		ReturnDetails: &types.ReturnDetails{
			ReturnedBy:        uuid.New(),
			ReturnedRole:      enums.ActorRoleWholesaler.String(),
			ReturnRequestedAt: assignedAt,
			ReturnReason:      "wrong batch shipped",
		},
	}

	repo := &stubRepo{order: order}
	svc, emitter, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), Role: enums.ActorRoleTransporter}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusReturnAccepted,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.claimCalls)
	assert.Equal(t, 0, repo.updateCalls)
	assert.Equal(t, actor.ID, repo.capturedUpdates["transporter_id"])
	assert.Contains(t, eventTypes(emitter.events), enums.EventAssignmentAccepted)

	// acceptance is stamped when the transporter claims, not at receipt
	rd, ok := repo.capturedUpdates["return_details"].(*types.ReturnDetails)
	require.True(t, ok)
	assert.NotNil(t, rd.ReturnAcceptedAt)
	assert.Nil(t, rd.ReturnReceivedAt)
	assert.Equal(t, order.ReturnDetails.ReturnedBy, rd.ReturnedBy)
}

func TestUpdateStatus_FreeOfferAcceptUsesClaimPredicate(t *testing.T) {
	order, _, _ := retailOrder(enums.OrderStatusAssignedToTransporter)
	mode := enums.AssignmentModeFree
	assignedAt := time.Now().Add(-5 * time.Minute)
	expiresAt := time.Now().Add(25 * time.Minute)
	prev := enums.OrderStatusProcessing
	order.AssignmentMode = &mode
	order.AssignedAt = &assignedAt
	order.AssignmentExpiresAt = &expiresAt
	order.AssignmentPrevStatus = &prev

	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), Role: enums.ActorRoleTransporter}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAcceptedByTransporter,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.claimCalls)
	assert.Equal(t, 0, repo.updateCalls)
	assert.Equal(t, actor.ID, repo.capturedUpdates["transporter_id"])
}

func TestUpdateStatus_FreeOfferLoserGetsAssignmentConflict(t *testing.T) {
	order, _, _ := retailOrder(enums.OrderStatusAssignedToTransporter)
	mode := enums.AssignmentModeFree
	assignedAt := time.Now().Add(-5 * time.Minute)
	expiresAt := time.Now().Add(25 * time.Minute)
	prev := enums.OrderStatusProcessing
	order.AssignmentMode = &mode
	order.AssignedAt = &assignedAt
	order.AssignmentExpiresAt = &expiresAt
	order.AssignmentPrevStatus = &prev

	repo := &stubRepo{order: order}
	repo.claimFreeFn = func(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error) {
		return 0, nil
	}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), Role: enums.ActorRoleTransporter}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusAcceptedByTransporter,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeAssignmentConflict, typed.Code())
	// losing a pool claim is final, not a retryable version conflict
	assert.Equal(t, 1, repo.claimCalls)
	assert.Equal(t, 0, repo.updateCalls)
}

func supplyOrder(status enums.OrderStatus) (*models.Order, uuid.UUID, uuid.UUID) {
	wholesalerStore := uuid.New()
	supplierStore := uuid.New()
	return &models.Order{
		ID:                uuid.New(),
		OrderNumber:       2010,
		Family:            enums.OrderFamilySupply,
		WholesalerStoreID: wholesalerStore,
		SupplierStoreID:   &supplierStore,
		Status:            status,
		TotalCents:        80000,
		FinalCents:        80000,
		Version:           4,
	}, wholesalerStore, supplierStore
}

func TestUpdateStatus_ReturnRequestWritesRecordOnce(t *testing.T) {
	order, wholesalerStore, _ := supplyOrder(enums.OrderStatusDelivered)
	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusReturnRequested,
		Reason: "pallets arrived water damaged",
	})
	require.NoError(t, err)

	rd, ok := repo.capturedUpdates["return_details"].(*types.ReturnDetails)
	require.True(t, ok)
	assert.Equal(t, actor.ID, rd.ReturnedBy)
	assert.Equal(t, "pallets arrived water damaged", rd.ReturnReason)
	assert.Equal(t, enums.AssignmentModeFree, repo.capturedUpdates["assignment_mode"])
}

func TestUpdateStatus_SecondReturnRequestKeepsOriginalRecord(t *testing.T) {
	order, wholesalerStore, _ := supplyOrder(enums.OrderStatusDelivered)
	requestedAt := time.Now().Add(-3 * time.Hour)
	order.ReturnDetails = &types.ReturnDetails{
		ReturnedBy:        uuid.New(),
		ReturnedRole:      enums.ActorRoleWholesaler.String(),
		ReturnRequestedAt: requestedAt,
		ReturnReason:      "pallets arrived water damaged",
	}

	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	// the pickup offer expired and the order reverted to delivered; asking
	// again must not overwrite the original request record
	actor := Actor{ID: uuid.New(), StoreID: &wholesalerStore, Role: enums.ActorRoleWholesaler}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusReturnRequested,
		Reason: "still water damaged",
	})
	require.NoError(t, err)

	assert.NotContains(t, repo.capturedUpdates, "return_details")
	assert.Equal(t, enums.AssignmentModeFree, repo.capturedUpdates["assignment_mode"])
}

func TestUpdateStatus_ReturnReceiptPreservesAcceptance(t *testing.T) {
	order, _, _ := supplyOrder(enums.OrderStatusReturnInTransit)
	transporterID := uuid.New()
	mode := enums.AssignmentModeFree
	acceptedAt := time.Now().Add(-2 * time.Hour)
	order.TransporterID = &transporterID
	order.AssignmentMode = &mode
	order.AssignmentReturnLeg = true
	order.ReturnDetails = &types.ReturnDetails{
		ReturnedBy:        uuid.New(),
		ReturnedRole:      enums.ActorRoleWholesaler.String(),
		ReturnRequestedAt: acceptedAt.Add(-time.Hour),
		ReturnReason:      "wrong batch shipped",
		ReturnAcceptedAt:  &acceptedAt,
	}

	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: transporterID, Role: enums.ActorRoleTransporter}
	_, err := svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusInput{
		Status: enums.OrderStatusReturnedToSupplier,
	})
	require.NoError(t, err)

	rd, ok := repo.capturedUpdates["return_details"].(*types.ReturnDetails)
	require.True(t, ok)
	require.NotNil(t, rd.ReturnReceivedAt)
	require.NotNil(t, rd.ReturnAcceptedAt)
	assert.True(t, rd.ReturnAcceptedAt.Equal(acceptedAt))
}

func TestRaiseDispute_RequiresReason(t *testing.T) {
	order, retailerStore, _ := retailOrder(enums.OrderStatusDelivered)
	repo := &stubRepo{order: order}
	svc, _, _ := newTestService(repo)

	actor := Actor{ID: uuid.New(), StoreID: &retailerStore, Role: enums.ActorRoleRetailer}
	_, err := svc.RaiseDispute(context.Background(), actor, order.ID, DisputeInput{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.RaiseDispute(context.Background(), actor, order.ID, DisputeInput{Reason: "half the cases arrived crushed"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDisputed, repo.capturedUpdates["status"])
}
