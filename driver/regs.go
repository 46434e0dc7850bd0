// Package driver implements the socket layer over the network
// coprocessor: a core worker that brings the device up and multiplexes
// its interrupt sources, and per-socket cooperative state machines for
// UDP datagram and TCP stream transfer. All device access goes through
// the spi command pipeline; the driver mirrors the device's buffer
// pointers host-side and never blocks on the bus.
package driver

// Common register block addresses.
const (
	regNetConfig uint16 = 0x0001
	regIntConfig uint16 = 0x0013
	regIntStatus uint16 = 0x0015
	regPhyStatus uint16 = 0x002E
	regVersion   uint16 = 0x0039
)

// The network configuration block holds the gateway, subnet mask, MAC
// and local address as one contiguous write.
const netConfigSize = 18

// The interrupt configuration block holds the low-level interrupt
// timer followed by the common and socket interrupt mask registers.
const intConfigSize = 6

// The interrupt status block covers the common and socket interrupt
// flag and mask registers in one read.
const intStatusSize byte = 4

// Socket register block addresses.
const (
	snMode      uint16 = 0x0000
	snCommand   uint16 = 0x0001
	snInterrupt uint16 = 0x0002
	snStatus    uint16 = 0x0003
	snLocalPort uint16 = 0x0004
	snRemote    uint16 = 0x000C
	snBufSize   uint16 = 0x001E
	snTxFree    uint16 = 0x0020
	snTxReadPtr uint16 = 0x0022
	snTxWrite   uint16 = 0x0024
	snRxStatus  uint16 = 0x0026
	snRxReadPtr uint16 = 0x0028
	snIntEnable uint16 = 0x002C
)

// The buffer configuration block holds the receive and transmit buffer
// sizes followed by the five transfer pointer registers.
const bufConfigSize = 14

// Socket protocol modes.
const (
	modeTCP byte = 0x01
	modeUDP byte = 0x02
)

// Socket commands, written to the socket command register.
const (
	cmdOpen       byte = 0x01
	cmdConnect    byte = 0x04
	cmdDisconnect byte = 0x08
	cmdClose      byte = 0x10
	cmdSend       byte = 0x20
	cmdReceive    byte = 0x40
)

// Socket status register values.
const (
	statusClosed  byte = 0x00
	statusInitTCP byte = 0x13
	statusOpenUDP byte = 0x22
)

// Socket interrupt flags. The low five bits mirror the device's socket
// interrupt register; the top bit is a host-local close request that is
// never written to the device.
const (
	intConnected  byte = 0x01
	intDisconnect byte = 0x02
	intReceive    byte = 0x04
	intTimeout    byte = 0x08
	intSendOK     byte = 0x10

	intHardwareMask byte = 0x1F

	flagCloseRequest byte = 0x80
)

// Device version register value for this part.
const versionID byte = 0x04

// PHY status register bits.
const (
	phyLinkUp     byte = 0x01
	phySpeed100   byte = 0x02
	phyFullDuplex byte = 0x04
)

// udpHeaderSize is the metadata prefix the device prepends to each
// received datagram: four address bytes, two port bytes and a two byte
// payload length.
const udpHeaderSize = 8
