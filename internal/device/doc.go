// Package device defines the BLE transport contract the pad driver is built on.
//
// It provides:
//   - the Peripheral and Characteristic interfaces (connect, discover, write, subscribe)
//   - a structured connection error taxonomy with NormalizeError
//   - UUID normalization and fragment matching used to locate characteristics
//
// Concrete transports live in sub-packages (see goble).
package device
