// Package viewer owns the lifecycle of one hosted space viewer bound to one
// mount region. A Session acquires a rendering engine asynchronously through a
// Loader, starts it, tracks its readiness and error state, mediates 2D/3D mode
// changes, and tears the engine down exactly once when disposed, even when
// disposal races the asynchronous setup.
//
// Hosts observe a session through its EventBus, which carries ready, error,
// and mode-changed notifications. Hosts never touch the engine directly.
package viewer
