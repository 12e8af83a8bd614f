package host

// Driver is a class driver offered each newly attached device.
//
// Connected is called once per attach with the parsed device descriptor
// and a parser positioned at the start of the configuration descriptor
// set. It returns true to claim the device; the first driver to claim a
// device stops the offer loop. A driver returning an error is skipped.
//
// Tick is called on every start-of-frame while the host is running and may
// issue transfers through h. Disconnected is called on the claiming driver
// when its device detaches.
type Driver interface {
	Connected(h *Host, dev *Device, desc *DeviceDescriptor, parser *DescriptorParser) (bool, error)
	Disconnected(h *Host, dev *Device)
	Tick(h *Host) error
}
