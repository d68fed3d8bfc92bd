package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// HexStrToBytes32 converts a hex string (with/without prefix 0x) to [32]byte.
// The string must decode to exactly 32 bytes.
func HexStrToBytes32(hexStr string) ([32]byte, error) {
	var b32 [32]byte
	b, err := hex.DecodeString(Trim0xPrefix(hexStr))
	if err != nil {
		return b32, err
	}
	if len(b) != 32 {
		return b32, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(b32[:], b)
	return b32, nil
}

// Bytes32ToHexStr returns the lower-case hex string with prefix 0x.
func Bytes32ToHexStr(b [32]byte) string {
	return "0x" + hex.EncodeToString(b[:])
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return [32]byte{}
	}
	return b
}

func RandBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil
	}
	return b
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}
