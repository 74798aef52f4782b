//go:build amd64 || arm64 || mips64 || mips64le || ppc64le || riscv64
// +build amd64 arm64 mips64 mips64le ppc64le riscv64

package ipmi

import "golang.org/x/sys/unix"

const (
	// NFDBitS is the amount of bits per mask.
	NFDBits = 8 * 8
)

// FDZero set to zero the fdSet.
func FDZero(p *unix.FdSet) {
	p.Bits = [16]int64{}
}
