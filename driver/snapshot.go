package driver

// SocketInfo is a point-in-time description of one socket, for
// inspection surfaces such as the monitoring server.
type SocketInfo struct {
	ID         int    `json:"id"`
	Protocol   string `json:"protocol"`
	LocalPort  uint16 `json:"local_port"`
	RxBuffered int    `json:"rx_buffered"`
	RxCapacity int    `json:"rx_capacity"`
	TxBuffered int    `json:"tx_buffered"`
	TxCapacity int    `json:"tx_capacity"`
}

func (p phase) String() string {
	switch p {
	case phaseUDP:
		return "udp"
	case phaseTCP:
		return "tcp"
	}
	return "closed"
}

// Name returns the driver instance name.
func (d *Driver) Name() string {
	return d.name
}

// Snapshot reports the current state of every socket.
func (d *Driver) Snapshot() []SocketInfo {
	infos := make([]SocketInfo, 0, len(d.sockets))
	for _, s := range d.sockets {
		infos = append(infos, SocketInfo{
			ID:         int(s.id),
			Protocol:   s.phase.String(),
			LocalPort:  s.setup.localPort,
			RxBuffered: s.rxStream.Buffered(),
			RxCapacity: s.rxStream.Capacity(),
			TxBuffered: s.txStream.Buffered(),
			TxCapacity: s.txStream.Capacity(),
		})
	}
	return infos
}
