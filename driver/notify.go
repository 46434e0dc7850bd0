package driver

// Notification is an asynchronous event reported to the socket owner or
// to the driver-level handler. Handlers run on the scheduler goroutine
// and must not block.
type Notification int

const (
	NotifyPhyLinkUp Notification = iota
	NotifyPhyLinkDown
	NotifyUDPSocketOpened
	NotifyUDPSocketClosed
	NotifyUDPMessageSent
	NotifyUDPArpTimeout
	NotifyTCPSocketOpened
	NotifyTCPSocketClosed
	NotifyTCPConnected
	NotifyTCPConnectTimeout
)

func (n Notification) String() string {
	switch n {
	case NotifyPhyLinkUp:
		return "phy link up"
	case NotifyPhyLinkDown:
		return "phy link down"
	case NotifyUDPSocketOpened:
		return "udp socket opened"
	case NotifyUDPSocketClosed:
		return "udp socket closed"
	case NotifyUDPMessageSent:
		return "udp message sent"
	case NotifyUDPArpTimeout:
		return "udp arp timeout"
	case NotifyTCPSocketOpened:
		return "tcp socket opened"
	case NotifyTCPSocketClosed:
		return "tcp socket closed"
	case NotifyTCPConnected:
		return "tcp connected"
	case NotifyTCPConnectTimeout:
		return "tcp connect timeout"
	}
	return "unknown"
}

// NotifyHandler receives socket status notifications.
type NotifyHandler func(Notification)

func (s *socket) notify(n Notification) {
	if s.notifyHandler != nil {
		s.notifyHandler(n)
	}
}
