package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
)

func TestValidate_RetailHappyPath(t *testing.T) {
	steps := []struct {
		current   enums.OrderStatus
		requested enums.OrderStatus
		role      enums.ActorRole
		reason    string
	}{
		{enums.OrderStatusPending, enums.OrderStatusAccepted, enums.ActorRoleWholesaler, ""},
		{enums.OrderStatusAccepted, enums.OrderStatusProcessing, enums.ActorRoleWholesaler, ""},
		{enums.OrderStatusProcessing, enums.OrderStatusAssignedToTransporter, enums.ActorRoleWholesaler, ""},
		{enums.OrderStatusAssignedToTransporter, enums.OrderStatusAcceptedByTransporter, enums.ActorRoleTransporter, ""},
		{enums.OrderStatusAcceptedByTransporter, enums.OrderStatusInTransit, enums.ActorRoleTransporter, ""},
		{enums.OrderStatusInTransit, enums.OrderStatusDelivered, enums.ActorRoleTransporter, ""},
		{enums.OrderStatusDelivered, enums.OrderStatusCertified, enums.ActorRoleRetailer, ""},
	}

	for _, s := range steps {
		tr, err := Validate(Request{
			Family:    enums.OrderFamilyRetail,
			Current:   s.current,
			Requested: s.requested,
			Role:      s.role,
			Reason:    s.reason,
		})
		require.Nil(t, err, "%s -> %s", s.current, s.requested)
		assert.Equal(t, s.requested, tr.Effective)
		assert.False(t, tr.ReturnLeg)
	}
}

func TestValidate_SupplyHappyPath(t *testing.T) {
	steps := []struct {
		current   enums.OrderStatus
		requested enums.OrderStatus
		role      enums.ActorRole
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.ActorRoleSupplier},
		{enums.OrderStatusConfirmed, enums.OrderStatusInProduction, enums.ActorRoleSupplier},
		{enums.OrderStatusInProduction, enums.OrderStatusReadyForDelivery, enums.ActorRoleSupplier},
		{enums.OrderStatusReadyForDelivery, enums.OrderStatusAssignedToTransporter, enums.ActorRoleSupplier},
		{enums.OrderStatusAssignedToTransporter, enums.OrderStatusAcceptedByTransporter, enums.ActorRoleTransporter},
		{enums.OrderStatusAcceptedByTransporter, enums.OrderStatusInTransit, enums.ActorRoleTransporter},
		{enums.OrderStatusInTransit, enums.OrderStatusDelivered, enums.ActorRoleTransporter},
		{enums.OrderStatusDelivered, enums.OrderStatusCertified, enums.ActorRoleWholesaler},
	}

	for _, s := range steps {
		tr, err := Validate(Request{
			Family:    enums.OrderFamilySupply,
			Current:   s.current,
			Requested: s.requested,
			Role:      s.role,
		})
		require.Nil(t, err, "%s -> %s", s.current, s.requested)
		assert.Equal(t, s.requested, tr.Effective)
	}
}

func TestValidate_SkippedStepNamesRequiredStatus(t *testing.T) {
	_, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusAssignedToTransporter,
		Role:      enums.ActorRoleWholesaler,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, err.Code())

	denial, ok := err.Details().(TransitionDenial)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusPending, denial.CurrentStatus)
	assert.Equal(t, enums.OrderStatusAssignedToTransporter, denial.RequestedStatus)
	assert.Equal(t, enums.OrderStatusAccepted, denial.RequiredStatus)
}

func TestValidate_SupplySkippedStep(t *testing.T) {
	_, err := Validate(Request{
		Family:    enums.OrderFamilySupply,
		Current:   enums.OrderStatusConfirmed,
		Requested: enums.OrderStatusReadyForDelivery,
		Role:      enums.ActorRoleSupplier,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, err.Code())

	denial, ok := err.Details().(TransitionDenial)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusInProduction, denial.RequiredStatus)
}

func TestValidate_WrongRoleIsForbidden(t *testing.T) {
	_, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusAccepted,
		Role:      enums.ActorRoleRetailer,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, err.Code())
}

func TestValidate_AdminMayActOnAnyEdge(t *testing.T) {
	tr, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusAccepted,
		Role:      enums.ActorRoleAdmin,
	})
	require.Nil(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, tr.Effective)
}

func TestValidate_ReasonRequired(t *testing.T) {
	_, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusRejected,
		Role:      enums.ActorRoleWholesaler,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, err.Code())

	tr, verr := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusRejected,
		Role:      enums.ActorRoleWholesaler,
		Reason:    "out of stock",
	})
	require.Nil(t, verr)
	assert.Equal(t, enums.OrderStatusRejected, tr.Effective)
}

func TestValidate_TerminalStatusHasNoEdges(t *testing.T) {
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusCertified,
		enums.OrderStatusRejected,
		enums.OrderStatusCancelledByWholesaler,
	} {
		_, err := Validate(Request{
			Family:    enums.OrderFamilyRetail,
			Current:   status,
			Requested: enums.OrderStatusAccepted,
			Role:      enums.ActorRoleWholesaler,
		})
		require.NotNil(t, err, "status %s", status)
		assert.Equal(t, pkgerrors.CodeStateConflict, err.Code())
		assert.True(t, IsTerminal(enums.OrderFamilyRetail, status))
	}
}

func TestValidate_ReassignRequiresExpiredOffer(t *testing.T) {
	_, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusAssignedToTransporter,
		Requested: enums.OrderStatusAssignedToTransporter,
		Role:      enums.ActorRoleWholesaler,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeAssignmentConflict, err.Code())

	tr, verr := Validate(Request{
		Family:            enums.OrderFamilyRetail,
		Current:           enums.OrderStatusAssignedToTransporter,
		Requested:         enums.OrderStatusAssignedToTransporter,
		Role:              enums.ActorRoleWholesaler,
		AssignmentExpired: true,
	})
	require.Nil(t, verr)
	assert.Equal(t, enums.OrderStatusAssignedToTransporter, tr.Effective)
}

func TestValidate_DisputeReturnLegLandsOnReturnToWholesaler(t *testing.T) {
	tr, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusDisputed,
		Requested: enums.OrderStatusAssignedToTransporter,
		Role:      enums.ActorRoleWholesaler,
	})
	require.Nil(t, err)
	assert.Equal(t, enums.OrderStatusReturnToWholesaler, tr.Effective)
	assert.True(t, tr.ReturnLeg)
}

func TestValidate_SupplyReturnFlow(t *testing.T) {
	tr, err := Validate(Request{
		Family:    enums.OrderFamilySupply,
		Current:   enums.OrderStatusDelivered,
		Requested: enums.OrderStatusReturnRequested,
		Role:      enums.ActorRoleWholesaler,
		Reason:    "damaged pallets",
	})
	require.Nil(t, err)
	assert.Equal(t, enums.OrderStatusReturnRequested, tr.Effective)

	for _, step := range []struct {
		current, requested enums.OrderStatus
	}{
		{enums.OrderStatusReturnRequested, enums.OrderStatusReturnAccepted},
		{enums.OrderStatusReturnAccepted, enums.OrderStatusReturnInTransit},
		{enums.OrderStatusReturnInTransit, enums.OrderStatusReturnedToSupplier},
	} {
		tr, err := Validate(Request{
			Family:    enums.OrderFamilySupply,
			Current:   step.current,
			Requested: step.requested,
			Role:      enums.ActorRoleTransporter,
		})
		require.Nil(t, err, "%s -> %s", step.current, step.requested)
		assert.Equal(t, step.requested, tr.Effective)
	}

	assert.True(t, IsTerminal(enums.OrderFamilySupply, enums.OrderStatusReturnedToSupplier))
}

func TestValidate_RetailReturnResolution(t *testing.T) {
	// accept ends the flow
	tr, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusReturnToWholesaler,
		Requested: enums.OrderStatusReturnAccepted,
		Role:      enums.ActorRoleWholesaler,
	})
	require.Nil(t, err)
	assert.Equal(t, enums.OrderStatusReturnAccepted, tr.Effective)
	assert.True(t, IsTerminal(enums.OrderFamilyRetail, enums.OrderStatusReturnAccepted))

	// reject allows a redo shipment back to the retailer
	_, err = Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusReturnToWholesaler,
		Requested: enums.OrderStatusReturnRejected,
		Role:      enums.ActorRoleWholesaler,
		Reason:    "items not in claimed condition",
	})
	require.Nil(t, err)

	tr, err = Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusReturnRejected,
		Requested: enums.OrderStatusAssignedToTransporter,
		Role:      enums.ActorRoleWholesaler,
	})
	require.Nil(t, err)
	assert.Equal(t, enums.OrderStatusAssignedToTransporter, tr.Effective)
	assert.False(t, IsTerminal(enums.OrderFamilyRetail, enums.OrderStatusReturnRejected))
}

func TestValidate_FamiliesDoNotShareEdges(t *testing.T) {
	// confirmed is a supply-only status
	_, err := Validate(Request{
		Family:    enums.OrderFamilyRetail,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusConfirmed,
		Role:      enums.ActorRoleSupplier,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, err.Code())

	// accepted is retail-only
	_, err = Validate(Request{
		Family:    enums.OrderFamilySupply,
		Current:   enums.OrderStatusPending,
		Requested: enums.OrderStatusAccepted,
		Role:      enums.ActorRoleWholesaler,
	})
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, err.Code())
}
