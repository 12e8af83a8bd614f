// Package usbid names USB devices by vendor and product ID.
//
// Names come from the usb.ids database shipped by most Linux
// distributions, merged over a small built-in table covering the vendors
// the bridge has personalities for. Lookups work without the database;
// unknown IDs render as "[vvvv:pppp]".
package usbid
