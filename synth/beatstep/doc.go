// Package beatstep speaks the Arturia BeatStep parameter protocol.
//
// Every control (encoder, pad, knob) has a set of parameters addressed by
// a parameter id and a control id. [Set] writes one, [Get] asks for one,
// and the device answers with a set-shaped message matched by
// [ReplyPattern].
package beatstep
