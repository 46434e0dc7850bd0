package driver

// Conn is the capability surface shared by both socket kinds. Protocol
// specific transfer operations live on the concrete types; there are
// exactly two.
type Conn interface {
	// LocalPort returns the bound local port.
	LocalPort() uint16

	// Close initiates an orderly shutdown of the socket.
	Close() Status
}

var (
	_ Conn = (*UDPConn)(nil)
	_ Conn = (*TCPConn)(nil)
)
