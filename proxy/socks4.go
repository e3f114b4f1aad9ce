package proxy

import (
	"context"
	"encoding/binary"
	"io"
	"net"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
)

const (
	socks4Version    = 4
	socks4CmdConnect = 1

	socks4Granted  = 0x5a
	socks4Rejected = 0x5b
)

// socks4Connect does a SOCKS4a CONNECT. A dest given by name is sent in the
// trailer, so the proxy resolves it.
func socks4Connect(ctx context.Context, conn net.Conn, cand Candidate, dest netLayer.Addr) (net.Conn, error) {
	buf := utils.GetBuf()
	defer utils.PutBuf(buf)

	buf.WriteByte(socks4Version)
	buf.WriteByte(socks4CmdConnect)
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], uint16(dest.Port))
	buf.Write(port[:])

	var domain string
	if dest.IP != nil {
		ip4 := dest.IP.To4()
		if ip4 == nil {
			return nil, utils.ErrInErr{ErrDesc: "socks4 can't connect to ipv6", ErrDetail: netLayer.ErrAddressUnreachable, Data: dest.String()}
		}
		buf.Write(ip4)
	} else {
		buf.Write([]byte{0, 0, 0, 1})
		domain = dest.Name
	}
	buf.WriteString(cand.User)
	buf.WriteByte(0)
	if domain != "" {
		buf.WriteString(domain)
		buf.WriteByte(0)
	}

	stop := netLayer.WatchContext(ctx, conn)
	defer stop()

	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, netLayer.CtxErr(ctx, err)
	}

	var reply [8]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		if err = netLayer.CtxErr(ctx, err); isCanceled(err) {
			return nil, err
		}
		return nil, utils.ErrInErr{ErrDesc: "socks4 reply", ErrDetail: netLayer.ErrSocksConnectionFailed, Data: err}
	}
	if reply[0] != 0 {
		return nil, utils.ErrInErr{ErrDesc: "socks4 reply", ErrDetail: netLayer.ErrSocksConnectionFailed, Data: utils.NumErr{Prefix: "bad version ", N: int(reply[0])}}
	}
	switch reply[1] {
	case socks4Granted:
		return conn, nil
	case socks4Rejected:
		return nil, utils.ErrInErr{ErrDesc: "socks4 request rejected", ErrDetail: netLayer.ErrSocksConnectionFailed}
	}
	return nil, utils.ErrInErr{ErrDesc: "socks4 reply", ErrDetail: netLayer.ErrSocksConnectionFailed, Data: utils.NumErr{Prefix: "code ", N: int(reply[1])}}
}
