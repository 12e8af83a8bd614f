// Package api serves the router's HTTP status and control API.
//
//	GET    /health
//	GET    /api/v1/routes
//	POST   /api/v1/routes           body: config route declaration
//	DELETE /api/v1/routes/:handle
//	GET    /api/v1/stats
//	GET    /api/v1/display
//	POST   /api/v1/send             body: {"binding":"src","interface":"serial:0","packets":["09913c64"]}
//
// Route changes made through the API live only as long as the process.
package api
