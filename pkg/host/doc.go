// Package host declares the collaborator contracts the federation engine
// expects from the surrounding identity-server runtime.
//
// The engine never reaches into the host through globals: client lookup,
// user-session state, profile claims, the clock, and transient message
// persistence are all narrow interfaces injected into each component at
// construction time. The host implements them against whatever stack it
// runs on; this package ships in-memory and Redis implementations of the
// message store for hosts that do not bring their own.
package host
