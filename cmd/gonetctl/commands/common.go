package commands

import (
	"fmt"

	"github.com/DNS-OARC/gonet/ipaddr"
)

func parseAddrArg(s string) (ipaddr.Address, error) {
	addr, err := ipaddr.Parse(s)
	if err != nil {
		return ipaddr.Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return addr, nil
}
