package natdetect

import (
	"bufio"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
)

// ErrNoGateway is returned when no default route can be found.
var ErrNoGateway = errors.New("natdetect: no default gateway found")

// defaultGateway reads the kernel's routing table to find the default
// gateway's IP, for the NAT-PMP client which needs to dial the gateway
// directly rather than discovering it via multicast the way UPnP does.
// No library in the retrieval pack offers portable default-route
// discovery, so this one piece is stdlib-only (justified in DESIGN.md):
// it parses /proc/net/route, the same mechanism Linux tools like `route`
// itself rely on.
func defaultGateway() (net.IP, error) {
	f, err := os.Open("/proc/net/route")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		destHex, gwHex := fields[1], fields[2]
		if destHex != "00000000" {
			continue
		}
		raw, err := strconv.ParseUint(gwHex, 16, 32)
		if err != nil {
			continue
		}
		ip := make(net.IP, 4)
		binary.LittleEndian.PutUint32(ip, uint32(raw))
		return ip, nil
	}
	return nil, ErrNoGateway
}
