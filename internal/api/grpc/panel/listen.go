package panel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
)

// unixPrefixes are the accepted spellings of a unix socket address.
//
//nolint:gochecknoglobals // Immutable lookup table.
var unixPrefixes = []string{"unix://", "unix:"}

// SplitAddress returns the network and the listen address of a control address:
// "unix:///run/panel.sock" is a unix socket, anything else is TCP.
func SplitAddress(address string) (network, target string) {
	for _, prefix := range unixPrefixes {
		if path, ok := strings.CutPrefix(address, prefix); ok {
			return "unix", path
		}
	}

	return "tcp", address
}

// Listen opens the control listener. A stale unix socket is removed first.
func Listen(ctx context.Context, address string) (net.Listener, error) {
	network, target := SplitAddress(address)

	if network == "unix" {
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, network, target)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return lis, nil
}
