package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventPurchaseAccepted     = "purchase.accepted"
	EventPurchaseRejected     = "purchase.rejected"
	EventPurchaseExpired      = "purchase.expired"
	EventPaymentRecorded      = "payment.recorded"
	EventTransactionCompleted = "transaction.completed"
	EventSettlementCreated    = "settlement.created"
	EventWithdrawalRequested  = "settlement.withdrawal_requested"
	EventLimitIncreased       = "customer.limit_increased"
)

func newEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func NewPurchaseAccepted(requestID, transactionID, customerID, merchantID int64, totalAmount string) BaseEvent {
	return newEvent(EventPurchaseAccepted, map[string]interface{}{
		"request_id":     requestID,
		"transaction_id": transactionID,
		"customer_id":    customerID,
		"merchant_id":    merchantID,
		"total_amount":   totalAmount,
	})
}

func NewPaymentRecorded(paymentID, transactionID, customerID int64, amount string) BaseEvent {
	return newEvent(EventPaymentRecorded, map[string]interface{}{
		"payment_id":     paymentID,
		"transaction_id": transactionID,
		"customer_id":    customerID,
		"amount":         amount,
	})
}

func NewTransactionCompleted(transactionID, customerID, merchantID int64) BaseEvent {
	return newEvent(EventTransactionCompleted, map[string]interface{}{
		"transaction_id": transactionID,
		"customer_id":    customerID,
		"merchant_id":    merchantID,
	})
}

func NewSettlementCreated(settlementID, merchantID int64, settlementType, netAmount string) BaseEvent {
	return newEvent(EventSettlementCreated, map[string]interface{}{
		"settlement_id":   settlementID,
		"merchant_id":     merchantID,
		"settlement_type": settlementType,
		"net_amount":      netAmount,
	})
}

func NewLimitIncreased(customerID int64, newLimit, status string) BaseEvent {
	return newEvent(EventLimitIncreased, map[string]interface{}{
		"customer_id": customerID,
		"new_limit":   newLimit,
		"status":      status,
	})
}
