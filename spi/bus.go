package spi

// Status is the outcome of a bus access.
type Status int

const (
	// StatusOK means the access completed.
	StatusOK Status = iota

	// StatusNotReady means the bus cannot take the access right now and
	// the caller should retry.
	StatusNotReady

	// StatusActive means a started transfer is still in flight.
	StatusActive

	// StatusFailed means the bus failed in a way that cannot be retried.
	StatusFailed
)

// Bus is the platform interface below the adaptor: an SPI link with chip
// select, plus the device's reset and interrupt lines. Inline accesses
// complete synchronously; bulk transfers are started and complete
// asynchronously, reported through Poll and the bound completion callback.
type Bus interface {
	// Select asserts chip select. It returns false when the bus is held
	// elsewhere.
	Select() bool

	// Release deasserts chip select.
	Release() bool

	// WriteInline sends a short byte sequence within the current
	// selection.
	WriteInline(p []byte) Status

	// ReadInline fills p with device data within the current selection.
	ReadInline(p []byte) Status

	// StartWrite begins an asynchronous transfer of p to the device. It
	// returns false when a transfer cannot be started yet.
	StartWrite(p []byte) bool

	// StartRead begins an asynchronous transfer from the device into p.
	StartRead(p []byte) bool

	// Poll reports the state of the started transfer.
	Poll() Status

	// SetReset drives the device reset line.
	SetReset(asserted bool)

	// Bind registers the adaptor callbacks: transferDone fires when a
	// started transfer completes, interrupt fires on the falling edge of
	// the device interrupt line.
	Bind(transferDone func(), interrupt func())
}
