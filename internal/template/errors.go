package template

import "errors"

// ErrUnknown indicates an invalid style preset name was specified.
var ErrUnknown = errors.New("unknown style preset")
