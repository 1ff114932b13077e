package build

import "errors"

// Sentinel errors classifying setup failures; wrapped with context at the call site.
var (
	ErrDiscovery = errors.New("texbuilder: discovery error")
	ErrTimestamp = errors.New("texbuilder: timestamp error")
	ErrToolchain = errors.New("texbuilder: toolchain error")
)
