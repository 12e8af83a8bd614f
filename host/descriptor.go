package host

// Descriptor is one raw descriptor from a configuration descriptor set.
type Descriptor struct {
	Type uint8
	Data []byte
}

// Interface parses d as an interface descriptor.
func (d Descriptor) Interface() (InterfaceDescriptor, bool) {
	var out InterfaceDescriptor
	ok := ParseInterfaceDescriptor(d.Data, &out)
	return out, ok
}

// Endpoint parses d as an endpoint descriptor.
func (d Descriptor) Endpoint() (EndpointDescriptor, bool) {
	var out EndpointDescriptor
	ok := ParseEndpointDescriptor(d.Data, &out)
	return out, ok
}

// Configuration parses d as a configuration descriptor.
func (d Descriptor) Configuration() (ConfigurationDescriptor, bool) {
	var out ConfigurationDescriptor
	ok := ParseConfigurationDescriptor(d.Data, &out)
	return out, ok
}

// DescriptorParser walks a configuration descriptor set one descriptor at
// a time. It can be rewound so that several drivers each see the set from
// the start.
type DescriptorParser struct {
	buf []byte
	off int
}

// NewDescriptorParser returns a parser over buf. The parser references buf.
func NewDescriptorParser(buf []byte) *DescriptorParser {
	return &DescriptorParser{buf: buf}
}

// Next returns the next descriptor. It returns false at the end of the
// buffer or at the first malformed length.
func (p *DescriptorParser) Next() (Descriptor, bool) {
	if p.off+2 > len(p.buf) {
		return Descriptor{}, false
	}
	length := int(p.buf[p.off])
	if length < 2 || p.off+length > len(p.buf) {
		p.off = len(p.buf)
		return Descriptor{}, false
	}
	d := Descriptor{
		Type: p.buf[p.off+1],
		Data: p.buf[p.off : p.off+length],
	}
	p.off += length
	return d, true
}

// Rewind returns the parser to the first descriptor.
func (p *DescriptorParser) Rewind() {
	p.off = 0
}

// Len returns the size of the descriptor set in bytes.
func (p *DescriptorParser) Len() int {
	return len(p.buf)
}
