package engine

const (
	EventTokenIssued EventType = iota + 1
	EventTokenCancelled
	EventRequestApproved
	EventAllocation
	EventAssignmentExpired
	EventTripStepChanged
	EventTripCompleted
	EventTripCancelled
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type TokenIssuedEvent struct {
	TokenID   int64
	TokenNo   string
	StationID int64
	DriverID  int64
	Seq       int
}

type TokenCancelledEvent struct {
	TokenID int64
	TokenNo string
	Reason  string
}

type RequestApprovedEvent struct {
	RequestID int64
	StationID int64
}

type AllocationEvent struct {
	TripID          int64
	TokenID         int64
	RequestID       int64
	DriverID        int64
	OriginStationID int64
	DestStationID   int64
}

type AssignmentExpiredEvent struct {
	RequestID       int64
	DriverID        int64
	DriverName      string
	DestinationName string
}

type TripStepChangedEvent struct {
	TripID   int64
	PublicID string
	OldStep  int
	NewStep  int
	Status   string
}

type TripCompletedEvent struct {
	TripID      int64
	PublicID    string
	RequestID   *int64
	DeliveredKg float64
}

type TripCancelledEvent struct {
	TripID   int64
	PublicID string
	Reason   string
}

type ConnectionEvent struct {
	Detail string
}
