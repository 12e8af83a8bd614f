// Package config loads the router's JSON configuration.
//
// A configuration names the serial ports, enables the USB host port,
// declares boot-time routes with their filters and sets the API address:
//
//	{
//	  "logLevel": "info",
//	  "serial": [{"index": 0, "device": "/dev/ttyAMA0"}],
//	  "usb": {"enabled": true},
//	  "routes": [
//	    {"source": "serial:0", "destination": "usb:0",
//	     "filters": [{"type": "channel", "channels": [1, 2]}]}
//	  ],
//	  "api": {"listen": "127.0.0.1:8080"}
//	}
//
// Channels in filter declarations are numbered 1-16. Routes edited at
// runtime through the API are not written back.
package config
