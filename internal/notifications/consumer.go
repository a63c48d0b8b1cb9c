package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox/idempotency"
)

const consumerName = "notifications"

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type processResult struct {
	ack bool
}

// Consumer turns published order events into in-app notifications for every
// store on the order except the one that acted, plus a best-effort WhatsApp
// ping. The gateway resolves store IDs to phone numbers, so rows here only
// carry store IDs.
type Consumer struct {
	sub       subscriber
	repo      Repository
	orderRepo orders.Repository
	idem      *idempotency.Manager
	whatsapp  *WhatsAppClient
	logg      *logger.Logger
}

func NewConsumer(
	sub subscriber,
	repo Repository,
	orderRepo orders.Repository,
	idem *idempotency.Manager,
	whatsapp *WhatsAppClient,
	logg *logger.Logger,
) *Consumer {
	return &Consumer{
		sub:       sub,
		repo:      repo,
		orderRepo: orderRepo,
		idem:      idem,
		whatsapp:  whatsapp,
		logg:      logg,
	}
}

// Run blocks receiving messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logg.Info(ctx, "notifications consumer started")
	return c.sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		result := c.process(msgCtx, msg.Attributes["event_type"], msg.Data)
		if result.ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) process(ctx context.Context, eventType string, data []byte) processResult {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Warn(ctx, "dropping undecodable event payload")
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Warn(ctx, "dropping event with invalid event id")
		return processResult{ack: true}
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	processed, err := c.idem.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{ack: false}
	}
	if processed {
		return processResult{ack: true}
	}

	rows, err := c.buildNotifications(logCtx, enums.OutboxEventType(eventType), envelope)
	if err != nil {
		c.logg.Error(logCtx, "building notifications", err)
		c.unmark(logCtx, eventID)
		return processResult{ack: false}
	}

	for i := range rows {
		if err := c.repo.Insert(logCtx, &rows[i]); err != nil {
			c.logg.Error(logCtx, "inserting notification", err)
			c.unmark(logCtx, eventID)
			return processResult{ack: false}
		}
	}

	if c.whatsapp.Enabled() {
		for i := range rows {
			if err := c.whatsapp.Send(logCtx, rows[i].StoreID.String(), rows[i].Message); err != nil {
				// best effort only
				c.logg.Warn(c.logg.WithStoreID(logCtx, rows[i].StoreID.String()), "whatsapp delivery failed")
			}
		}
	}

	return processResult{ack: true}
}

func (c *Consumer) unmark(ctx context.Context, eventID uuid.UUID) {
	if err := c.idem.Delete(ctx, consumerName, eventID); err != nil {
		c.logg.Error(ctx, "clearing idempotency marker", err)
	}
}

type orderEventData struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	FromStatus  string    `json:"fromStatus"`
	ToStatus    string    `json:"toStatus"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason"`
	ReturnLeg   bool      `json:"returnLeg"`
}

func (c *Consumer) buildNotifications(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]models.Notification, error) {
	notifType, ok := notificationTypeFor(eventType)
	if !ok {
		// not a notification-worthy event
		return nil, nil
	}

	var data orderEventData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding event data: %w", err)
	}

	order, err := c.orderRepo.FindOrder(ctx, data.OrderID)
	if err != nil {
		return nil, err
	}

	title, message := renderMessage(eventType, data)
	link := fmt.Sprintf("/orders/%s", order.ID)

	var actorStore *uuid.UUID
	if envelope.Actor != nil {
		actorStore = envelope.Actor.StoreID
	}

	var rows []models.Notification
	for _, storeID := range recipientStores(order, actorStore) {
		rows = append(rows, models.Notification{
			StoreID: storeID,
			Type:    notifType,
			Title:   title,
			Message: message,
			Link:    &link,
		})
	}
	return rows, nil
}

func notificationTypeFor(eventType enums.OutboxEventType) (enums.NotificationType, bool) {
	switch eventType {
	case enums.EventOrderStatusChanged, enums.EventOrderCancelled, enums.EventOrderCertified:
		return enums.NotificationTypeOrderAlert, true
	case enums.EventTransporterAssigned, enums.EventAssignmentAccepted,
		enums.EventAssignmentRejected, enums.EventAssignmentExpired:
		return enums.NotificationTypeAssignmentAlert, true
	case enums.EventDisputeRaised:
		return enums.NotificationTypeDisputeAlert, true
	case enums.EventReturnRequested, enums.EventReturnResolved:
		return enums.NotificationTypeReturnAlert, true
	default:
		return "", false
	}
}

func renderMessage(eventType enums.OutboxEventType, data orderEventData) (string, string) {
	switch eventType {
	case enums.EventOrderCancelled:
		return fmt.Sprintf("Order #%d cancelled", data.OrderNumber),
			fmt.Sprintf("Order #%d was cancelled: %s", data.OrderNumber, data.Reason)
	case enums.EventOrderCertified:
		return fmt.Sprintf("Order #%d certified", data.OrderNumber),
			fmt.Sprintf("Delivery of order #%d was certified by the recipient.", data.OrderNumber)
	case enums.EventTransporterAssigned:
		return fmt.Sprintf("Order #%d awaiting transporter", data.OrderNumber),
			fmt.Sprintf("A transporter offer was created for order #%d.", data.OrderNumber)
	case enums.EventAssignmentAccepted:
		return fmt.Sprintf("Order #%d picked up", data.OrderNumber),
			fmt.Sprintf("A transporter accepted order #%d.", data.OrderNumber)
	case enums.EventAssignmentRejected:
		return fmt.Sprintf("Order #%d needs a new transporter", data.OrderNumber),
			fmt.Sprintf("The transporter declined order #%d: %s", data.OrderNumber, data.Reason)
	case enums.EventAssignmentExpired:
		return fmt.Sprintf("Order #%d offer expired", data.OrderNumber),
			fmt.Sprintf("The transporter offer for order #%d expired without an accept.", data.OrderNumber)
	case enums.EventDisputeRaised:
		return fmt.Sprintf("Order #%d disputed", data.OrderNumber),
			fmt.Sprintf("The retailer disputed order #%d: %s", data.OrderNumber, data.Reason)
	case enums.EventReturnRequested:
		return fmt.Sprintf("Order #%d return requested", data.OrderNumber),
			fmt.Sprintf("A return was requested for order #%d: %s", data.OrderNumber, data.Reason)
	case enums.EventReturnResolved:
		return fmt.Sprintf("Order #%d return resolved", data.OrderNumber),
			fmt.Sprintf("The return on order #%d was resolved (%s).", data.OrderNumber, data.Status)
	default:
		return fmt.Sprintf("Order #%d updated", data.OrderNumber),
			fmt.Sprintf("Order #%d moved from %s to %s.", data.OrderNumber, data.FromStatus, data.ToStatus)
	}
}

func recipientStores(order *models.Order, actorStore *uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if actorStore != nil && *actorStore == id {
			return
		}
		out = append(out, id)
	}
	if order.RetailerStoreID != nil {
		add(*order.RetailerStoreID)
	}
	add(order.WholesalerStoreID)
	if order.SupplierStoreID != nil {
		add(*order.SupplierStoreID)
	}
	return out
}
