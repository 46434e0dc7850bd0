package driver

// Status is the outcome of a socket layer operation.
type Status int

const (
	// StatusSuccess means the operation completed or was queued.
	StatusSuccess Status = iota

	// StatusRetry means a transient resource shortage prevented the
	// operation; it may be retried later.
	StatusRetry

	// StatusNotOpen means the socket is not open for the requested
	// protocol.
	StatusNotOpen

	// StatusNotValid means the socket is open but not in a state that
	// admits the operation.
	StatusNotValid

	// StatusNotConnected means no TCP connection is established.
	StatusNotConnected

	// StatusOversized means the payload exceeds the socket's device
	// buffer capacity.
	StatusOversized

	// StatusUnsupported means the request uses an unsupported address
	// family.
	StatusUnsupported

	// StatusNotReady means the driver has not completed device bring-up
	// or the network link is down.
	StatusNotReady
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetry:
		return "retry"
	case StatusNotOpen:
		return "not open"
	case StatusNotValid:
		return "not valid"
	case StatusNotConnected:
		return "not connected"
	case StatusOversized:
		return "oversized"
	case StatusUnsupported:
		return "unsupported"
	case StatusNotReady:
		return "not ready"
	}
	return "unknown"
}
