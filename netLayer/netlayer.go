/*
Package netLayer contains definitions in network layer AND transport layer.

It holds the Addr type that every other layer uses to name a destination,
the raw tcp dialer with its socket options, the error taxonomy of the
connection layers, the growable ReadBuffer and the single goroutine Loop
that serializes a connection's callbacks.
*/
package netLayer
