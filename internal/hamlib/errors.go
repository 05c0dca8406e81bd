package hamlib

import (
	"errors"

	"github.com/w1cat/ftx1bridge/internal/catlink"
)

// RPRT codes used on the rigctl wire.
const (
	RPRTOK           = 0
	RPRTInvalid      = -1
	RPRTProtocol     = -2
	RPRTNotAvailable = -11
)

// ErrInvalidArgument and ErrNotAvailable are the two error kinds that
// originate in the translator itself rather than from CatLink/RadioModel.
var (
	ErrInvalidArgument = errors.New("hamlib: invalid argument")
	ErrNotAvailable    = errors.New("hamlib: not available on this head")
)

// rprtFor maps any error surfaced by a handler to the RPRT code sent to
// the client.
func rprtFor(err error) int {
	if err == nil {
		return RPRTOK
	}
	if errors.Is(err, ErrInvalidArgument) {
		return RPRTInvalid
	}
	if errors.Is(err, ErrNotAvailable) {
		return RPRTNotAvailable
	}
	if kind, ok := catlink.KindOf(err); ok {
		switch kind {
		case catlink.KindProtocol, catlink.KindTimeout, catlink.KindLinkClosed, catlink.KindMalformed:
			return RPRTProtocol
		}
	}
	return RPRTProtocol
}
