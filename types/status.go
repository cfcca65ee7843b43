package types

import "fmt"

// StatusCode is an OPC UA status code.
//
// The top two bits carry the severity (00 good, 01 uncertain, 10 bad). The low
// bits carry info bits; when the info type is DataValue, bit 7 is the overflow bit.
type StatusCode uint32

// Well-known status codes used by the library.
const (
	StatusGood                     StatusCode = 0x00000000
	StatusUncertain                StatusCode = 0x40000000
	StatusBad                      StatusCode = 0x80000000
	StatusBadUnexpectedError       StatusCode = 0x80010000
	StatusBadInternalError         StatusCode = 0x80020000
	StatusBadCommunicationError    StatusCode = 0x80050000
	StatusBadTimeout               StatusCode = 0x800A0000
	StatusBadShutdown              StatusCode = 0x800C0000
	StatusBadSubscriptionIDInvalid StatusCode = 0x80280000
	StatusBadNodeIDUnknown         StatusCode = 0x80340000
	StatusBadNotConnected          StatusCode = 0x808A0000
	StatusBadTooManyMonitoredItems StatusCode = 0x80DB0000
)

const (
	severityMask           StatusCode = 0xC0000000
	infoTypeDataValue      StatusCode = 0x00000400
	overflowBit            StatusCode = 0x00000080
	dataValueOverflowFlags            = infoTypeDataValue | overflowBit
)

var statusNames = map[StatusCode]string{
	StatusGood:                     "Good",
	StatusUncertain:                "Uncertain",
	StatusBad:                      "Bad",
	StatusBadUnexpectedError:       "BadUnexpectedError",
	StatusBadInternalError:         "BadInternalError",
	StatusBadCommunicationError:    "BadCommunicationError",
	StatusBadTimeout:               "BadTimeout",
	StatusBadShutdown:              "BadShutdown",
	StatusBadSubscriptionIDInvalid: "BadSubscriptionIdInvalid",
	StatusBadNodeIDUnknown:         "BadNodeIdUnknown",
	StatusBadNotConnected:          "BadNotConnected",
	StatusBadTooManyMonitoredItems: "BadTooManyMonitoredItems",
}

// IsGood reports whether the severity is good.
func (c StatusCode) IsGood() bool {
	return c&severityMask == 0
}

// IsBad reports whether the severity is bad.
func (c StatusCode) IsBad() bool {
	return c&StatusBad != 0
}

// WithOverflow returns the code with the DataValue info type and overflow bit set.
func (c StatusCode) WithOverflow() StatusCode {
	return c | dataValueOverflowFlags
}

// Overflow reports whether the overflow bit is set on a DataValue info type.
func (c StatusCode) Overflow() bool {
	return c&dataValueOverflowFlags == dataValueOverflowFlags
}

// String returns the symbolic name when known, the hex value otherwise.
func (c StatusCode) String() string {
	if name, ok := statusNames[c&^0xFFFF]; ok && c&0xFFFF == 0 {
		return name
	}
	if name, ok := statusNames[c&^0xFFFF]; ok {
		return fmt.Sprintf("%s(0x%08X)", name, uint32(c))
	}

	return fmt.Sprintf("0x%08X", uint32(c))
}
