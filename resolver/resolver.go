// Package resolver implements the resolver façade (component B): forward
// and reverse name lookup built on the standard library's resolver, plus a
// raw DNS record query (Query) that speaks the wire protocol itself over
// gonet's own udpsock/tcpsock endpoints rather than delegating to cgo or a
// third-party DNS client library.
package resolver

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"

	"github.com/DNS-OARC/gonet/ipaddr"
	"github.com/DNS-OARC/gonet/neterr"
)

// Family selects which address families get_host_by_name returns.
type Family int

const (
	Unspec Family = iota
	V4
	V6
	All
)

// Hostname returns the local host's own name. Per component B, failure to
// determine it is not fatal: the empty string is returned instead of an
// error.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// Resolver performs forward/reverse lookups. The zero value uses
// net.DefaultResolver.
type Resolver struct {
	netResolver *net.Resolver
}

// New returns a Resolver backed by the standard library's resolver.
func New() *Resolver {
	return &Resolver{netResolver: net.DefaultResolver}
}

// GetHostByName resolves name to a list of addresses filtered by family.
// All performs a V4 query and a V6 query and merges the results (V4
// first, deduplicated); if both return nothing, an empty, non-error list
// is returned.
func (r *Resolver) GetHostByName(ctx context.Context, name string, family Family) ([]ipaddr.Address, error) {
	switch family {
	case V4:
		return r.lookupFamily(ctx, name, "ip4")
	case V6:
		return r.lookupFamily(ctx, name, "ip6")
	case All:
		v4, err := r.lookupFamily(ctx, name, "ip4")
		if err != nil {
			return nil, err
		}
		v6, err := r.lookupFamily(ctx, name, "ip6")
		if err != nil {
			return nil, err
		}
		return mergeDedup(v4, v6), nil
	default:
		return r.lookupFamily(ctx, name, "ip")
	}
}

func (r *Resolver) lookupFamily(ctx context.Context, name, network string) ([]ipaddr.Address, error) {
	addrs, err := r.netResolver.LookupIP(ctx, network, name)
	if err != nil {
		if isNoResultError(err) {
			return nil, nil
		}
		return nil, neterr.Wrap(neterr.CodeHostNotFound, name, err)
	}

	out := make([]ipaddr.Address, 0, len(addrs))
	for _, a := range addrs {
		nip, ok := netip.AddrFromSlice(a)
		if !ok {
			continue
		}
		out = append(out, ipaddr.FromNetip(nip.Unmap()))
	}
	return out, nil
}

func mergeDedup(v4, v6 []ipaddr.Address) []ipaddr.Address {
	out := make([]ipaddr.Address, 0, len(v4)+len(v6))
	seen := make(map[string]struct{}, len(v4)+len(v6))
	for _, a := range append(append([]ipaddr.Address(nil), v4...), v6...) {
		s := a.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, a)
	}
	return out
}

// GetHostByAddr performs a reverse lookup, raising UnknownHost on failure.
func (r *Resolver) GetHostByAddr(ctx context.Context, addr ipaddr.Address) (string, error) {
	names, err := r.netResolver.LookupAddr(ctx, addr.String())
	if err != nil || len(names) == 0 {
		return "", neterr.New(neterr.CodeUnknownHost, addr.String())
	}
	return names[0], nil
}

// isNoResultError reports whether err represents "name not found" / "no
// data" rather than a transport or protocol failure, per §4.B's value-level
// vs error-level distinction.
func isNoResultError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}
