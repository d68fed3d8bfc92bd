package swap

// Status is the lifecycle stage of a swap.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInitiated Status = "INITIATED"
	StatusClaimed   Status = "CLAIMED"
	StatusRefunded  Status = "REFUNDED"
	StatusFailed    Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusInitiated, StatusFailed},
	StatusInitiated: {StatusClaimed, StatusFailed, StatusRefunded},
	StatusClaimed:   {StatusFailed, StatusRefunded},
	StatusFailed:    {StatusRefunded},
	// refunding the second leg of an already refunded swap
	StatusRefunded: {StatusRefunded},
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInitiated, StatusClaimed, StatusRefunded, StatusFailed}
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a swap in from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Leg names one side of a swap.
type Leg string

const (
	LegSource      Leg = "source"
	LegDestination Leg = "destination"
)

func (l Leg) Valid() bool {
	return l == LegSource || l == LegDestination
}

type SecurityLevel string

const (
	SecurityStandard SecurityLevel = "standard"
	SecurityEnhanced SecurityLevel = "enhanced"
	SecurityMax      SecurityLevel = "max"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)
