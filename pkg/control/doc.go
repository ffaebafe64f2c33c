// Package control exposes a viewer session as named tools (status, wait for
// readiness, toggle mode) and serves them over the Model Context Protocol so
// agents can drive the viewer the same way a host UI does.
package control
