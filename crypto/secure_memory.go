package crypto

import "runtime"

// ZeroBytes overwrites key material in place.
func ZeroBytes(data []byte) {
	clear(data)
	runtime.KeepAlive(data)
}
