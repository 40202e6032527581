package checkoutevents

const (
	TopicName             = "checkout"
	checkoutStartedName   = TopicName + ".started"
	checkoutConfirmedName = TopicName + ".confirmed"
	checkoutCancelledName = TopicName + ".cancelled"
)

type CheckoutStarted struct {
	Reference  string
	SessionUID string
	UserUID    string
	BookingIDs []string
	Amount     int64
	Currency   string
}

func (e CheckoutStarted) GetEventTypeName() string {
	return checkoutStartedName
}

func (e CheckoutStarted) GetAggregateName() string {
	return e.Reference
}

type CheckoutConfirmed struct {
	TransactionID   string
	Reference       string
	UserUID         string
	BookingIDs      []string
	Amount          int64
	CartItemIDs     []string
	AlreadyResolved []string
}

func (e CheckoutConfirmed) GetEventTypeName() string {
	return checkoutConfirmedName
}

func (e CheckoutConfirmed) GetAggregateName() string {
	return e.TransactionID
}

type CancelCause string

const (
	CancelCauseGatewayFailure CancelCause = "gateway_failure"
	CancelCauseInvalidReturn  CancelCause = "invalid_return"
	CancelCauseUser           CancelCause = "user"
	CancelCauseAbandoned      CancelCause = "abandoned"
	CancelCauseExpired        CancelCause = "expired"
)

type CheckoutCancelled struct {
	Reference       string
	UserUID         string
	BookingIDs      []string
	Cause           CancelCause
	Reason          string
	AlreadyResolved []string
}

func (e CheckoutCancelled) GetEventTypeName() string {
	return checkoutCancelledName
}

func (e CheckoutCancelled) GetAggregateName() string {
	return e.Reference
}
