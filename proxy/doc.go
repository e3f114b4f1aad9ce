/*
Package proxy decides how a destination is reached and opens the raw stream to it.

Layer Definition

A connection to a p2p peer passes through these layers, bottom up:

	6 ｜ stun / length prefixed packets   (frameLayer)
	--------------------
	5 ｜ tls / fake tls                   (tlsLayer)
	--------------------
	4 ｜ tunnel: CONNECT, socks4, socks5  (this package)
	--------------------
	3 ｜ tcp to a proxy or to the peer    (netLayer)
	--------------------

This package owns layers 3 and 4 for one attempt: a ConfigService names the
candidates (proxies or direct), a Resolver remembers which proxies failed
recently and puts them last, and a Connector opens the tunnel through one
candidate.

A List is made fresh per connection attempt and consumed front to back;
Fallback drops the head after a failure.
*/
package proxy
