// Package dw6000 describes the Korg DW-6000 exclusive messages as sysex
// token sequences.
//
// The same tokens drive both directions: [DumpPattern] is matched
// against inbound packets by [CaptureDump], and [Dump] produces the
// identical message from a [Patch].
package dw6000
