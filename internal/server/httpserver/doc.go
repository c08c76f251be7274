// Package httpserver provides the Pusher-compatible REST API server.
//
// The package splits into three layers, composed in NewRouter:
//
//   - handler: the endpoint implementations over the adapter
//   - middleware: request ids, panic recovery, request logging, the
//     Pusher HMAC signature check, per-app read rate limiting
//   - Server: the http.Server wrapper with production timeouts
//
// Every /apps/{appId}/... route is authenticated with the Pusher REST
// signature scheme against the app registry; probe routes are open.
package httpserver
