package resolver

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	dns "golang.org/x/net/dns/dnsmessage"

	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/tcpsock"
	"github.com/DNS-OARC/gonet/udpsock"
)

// RRType is a DNS resource record type, using the IANA-assigned numbers
// rather than golang.org/x/net/dns/dnsmessage's own (incomplete) Type enum,
// so component B's full type list — including ones that package does not
// parse natively, like DS and RRSIG — can be requested.
type RRType uint16

const (
	TypeA      RRType = 1
	TypeNS     RRType = 2
	TypeCNAME  RRType = 5
	TypeSOA    RRType = 6
	TypePTR    RRType = 12
	TypeMX     RRType = 15
	TypeTXT    RRType = 16
	TypeAAAA   RRType = 28
	TypeSRV    RRType = 33
	TypeNAPTR  RRType = 35
	TypeOPT    RRType = 41
	TypeDS     RRType = 43
	TypeRRSIG  RRType = 46
	TypeNSEC   RRType = 47
	TypeDNSKEY RRType = 48
	TypeNSEC3  RRType = 50
	TypeTSIG   RRType = 250
)

// RRClass is a DNS resource record class.
type RRClass uint16

const (
	ClassIN RRClass = 1
	ClassCH RRClass = 3
	ClassHS RRClass = 4
)

// QueryConfig selects which nameserver a Query is sent to and bounds how
// long it waits.
type QueryConfig struct {
	Server  string // "host:port"; defaults to "127.0.0.1:53"
	Timeout time.Duration
}

func (c QueryConfig) server() string {
	if c.Server != "" {
		return c.Server
	}
	return "127.0.0.1:53"
}

func (c QueryConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 5 * time.Second
}

// Query performs a raw DNS query for label (type t, class c) and renders
// each answer record as a string, per component B's formatting rules: A
// addresses as dotted-decimal, AAAA as canonical hex, and name-valued
// records (NS, SOA, CNAME, PTR) as the uncompressed name. Types this
// package does not parse natively are rendered as hex-encoded raw RDATA.
//
// The query is sent over gonet's own udpsock endpoint, falling back to
// tcpsock on a truncated (TC-bit) response, exactly as a conforming DNS
// client must (RFC 1035 §4.2.1).
func Query(ctx context.Context, label string, t RRType, c RRClass, cfg QueryConfig) ([]string, error) {
	name, err := dns.NewName(ensureFQDN(label))
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, label, err)
	}

	query := dns.Message{
		Header: dns.Header{
			ID:               uint16(rand.Intn(1 << 16)),
			RecursionDesired: true,
		},
		Questions: []dns.Question{{
			Name:  name,
			Type:  dns.Type(t),
			Class: dns.Class(c),
		}},
	}

	packed, err := query.Pack()
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, label, err)
	}

	resp, err := queryUDP(ctx, cfg, packed)
	if err != nil {
		return nil, err
	}

	var msg dns.Message
	if err := msg.Unpack(resp); err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, label, err)
	}

	if msg.Header.Truncated {
		resp, err = queryTCP(ctx, cfg, packed)
		if err != nil {
			return nil, err
		}
		msg = dns.Message{}
		if err := msg.Unpack(resp); err != nil {
			return nil, neterr.Wrap(neterr.CodeQueryFailed, label, err)
		}
	}

	switch msg.Header.RCode {
	case dns.RCodeSuccess:
	case dns.RCodeNameError:
		return nil, neterr.New(neterr.CodeHostNotFound, label)
	case dns.RCodeServerFailure:
		return nil, neterr.New(neterr.CodeTryAgain, label)
	default:
		return nil, neterr.New(neterr.CodeQueryFailed, fmt.Sprintf("%s rcode=%d", label, msg.Header.RCode))
	}

	if len(msg.Answers) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(msg.Answers))
	for _, a := range msg.Answers {
		out = append(out, formatAnswer(a))
	}
	return out, nil
}

func ensureFQDN(label string) string {
	if strings.HasSuffix(label, ".") {
		return label
	}
	return label + "."
}

func formatAnswer(a dns.Resource) string {
	switch body := a.Body.(type) {
	case *dns.AResource:
		return net.IP(body.A[:]).String()
	case *dns.AAAAResource:
		return net.IP(body.AAAA[:]).String()
	case *dns.NSResource:
		return body.NS.String()
	case *dns.CNAMEResource:
		return body.CNAME.String()
	case *dns.SOAResource:
		return fmt.Sprintf("%s %s %d %d %d %d %d", body.NS, body.MBox, body.Serial, body.Refresh, body.Retry, body.Expire, body.MinTTL)
	case *dns.PTRResource:
		return body.PTR.String()
	case *dns.MXResource:
		return fmt.Sprintf("%d %s", body.Pref, body.MX)
	case *dns.TXTResource:
		return strings.Join(body.TXT, "")
	case *dns.SRVResource:
		return fmt.Sprintf("%d %d %d %s", body.Priority, body.Weight, body.Port, body.Target)
	case *dns.UnknownResource:
		// DS, DNSKEY, NSEC, NSEC3, RRSIG, TSIG, NAPTR and any other
		// type dnsmessage has no typed body for: implementation-defined
		// raw-bytes rendering, per component B.
		return hex.EncodeToString(body.Data)
	default:
		// Typed bodies with no case above (OPT, for one) render as "".
		return ""
	}
}

func queryUDP(ctx context.Context, cfg QueryConfig, packed []byte) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(cfg.server())
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, cfg.server(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, portStr, err)
	}

	conn := udpsock.New()
	if err := conn.Connect(ctx, host, uint16(port)); err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetWriteTimeout(cfg.timeout())
	conn.SetReadTimeout(cfg.timeout())

	if _, err := conn.Write(packed); err != nil {
		return nil, err
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func queryTCP(ctx context.Context, cfg QueryConfig, packed []byte) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(cfg.server())
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, cfg.server(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeQueryFailed, portStr, err)
	}

	ep := tcpsock.New()
	ep.SetConnectTimeout(cfg.timeout())
	if err := ep.Connect(ctx, host, uint16(port)); err != nil {
		return nil, err
	}
	defer ep.Disconnect()

	ep.SetWriteTimeout(cfg.timeout())
	ep.SetReadTimeout(cfg.timeout())

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(packed)))
	if _, err := ep.Write(append(lenPrefix[:], packed...)); err != nil {
		return nil, err
	}

	var respLen [2]byte
	if _, err := ep.ReadLoop(respLen[:], cfg.timeout(), nil); err != nil {
		return nil, err
	}
	resp := make([]byte, binary.BigEndian.Uint16(respLen[:]))
	if _, err := ep.ReadLoop(resp, cfg.timeout(), nil); err != nil {
		return nil, err
	}
	return resp, nil
}
