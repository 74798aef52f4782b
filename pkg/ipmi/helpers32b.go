//go:build 386 || mips || mipsle
// +build 386 mips mipsle

package ipmi

import "golang.org/x/sys/unix"

const (
	// NFDBitS is the amount of bits per mask
	NFDBits = 4 * 8
)

// FDZero set to zero the fdSet.
func FDZero(p *unix.FdSet) {
	p.Bits = [32]int32{}
}
