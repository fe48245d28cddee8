package main

import (
	"fmt"
	"strings"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/pkg/errors"
)

// Mode selects what a run does.
type Mode string

const (
	ModeBridge   Mode = "bridge"
	ModeRotation Mode = "rotation"
	ModeBalances Mode = "balances"
	ModeRefuel   Mode = "refuel"
)

// invocation is a parsed command line after flags.
type invocation struct {
	mode  Mode
	route route.Route // Set for bridge and refuel.
}

// parseArgs parses the positional arguments.
//
// Parameters:
// - args: the arguments left after flag parsing.
//
// Returns:
// - invocation: the mode and its route.
// - error: ErrMissingRoute or ErrInvalidRoute for route modes, an error for an unknown mode.
func parseArgs(args []string) (invocation, error) {
	if len(args) == 0 {
		return invocation{}, errors.New("mode not provided")
	}

	inv := invocation{mode: Mode(strings.ToLower(args[0]))}
	code := ""
	if len(args) > 1 {
		code = args[1]
	}

	var err error
	switch inv.mode {
	case ModeBridge:
		inv.route, err = route.Parse(code)
	case ModeRefuel:
		inv.route, err = route.ParseRefuel(code)
	case ModeRotation, ModeBalances:
	default:
		return invocation{}, errors.Errorf("unknown mode %q", args[0])
	}
	return inv, err
}

// usage describes the command line and, for route errors, the routes the mode accepts.
func usage(mode Mode, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "error: %v\n\n", err)
	b.WriteString("usage: bridger [-config path] bridge <route> | rotation | balances | refuel <route>\n")

	if errors.Is(err, commonerrors.ErrMissingRoute) || errors.Is(err, commonerrors.ErrInvalidRoute) {
		routes := route.All()
		if mode == ModeRefuel {
			routes = route.Refuelable()
		}
		b.WriteString("\nsupported routes:\n")
		b.WriteString(route.Describe(routes))
	}
	return b.String()
}
