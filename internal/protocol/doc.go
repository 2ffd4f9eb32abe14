// Package protocol implements the WalkingPad wire format.
//
// Outbound commands are fixed-layout frames:
//
//	F7 | class | payload (1..6 bytes) | checksum | FD
//
// where checksum is the 8-bit sum of every byte between the header and the
// checksum slot. Inbound state notifications start with F8 A2 and carry belt
// state, speed, mode and three 24-bit big-endian counters.
//
// The package is pure: it performs no I/O and holds no state.
package protocol
