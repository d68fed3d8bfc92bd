package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexStrToBytes32(t *testing.T) {
	b := RandBytes32()
	str := Bytes32ToHexStr(b)
	assert.Len(t, str, 66)

	got, err := HexStrToBytes32(str)
	assert.NoError(t, err)
	assert.Equal(t, b, got)

	// without prefix, upper case
	got, err = HexStrToBytes32("0X" + str[2:])
	assert.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = HexStrToBytes32("0x1234")
	assert.Error(t, err)
	_, err = HexStrToBytes32("zz")
	assert.Error(t, err)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0x1234...cdef", Shorten("0x1234567890abcdef", 4))
	assert.Equal(t, "0x1234", Shorten("1234", 4))
}
