package storage

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	sum, err := ComputeChecksum(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(sum[:]))
	assert.Equal(t, "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD", bunnyChecksum([]byte("abc")))
}

func TestDetectContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/png", DetectContentType(png, "image/jpeg"))
	assert.Equal(t, "image/webp", DetectContentType(nil, "image/webp"))
	assert.Equal(t, "image/heic", DetectContentType([]byte{0x00, 0x01, 0x02, 0x03}, "image/heic"))
	assert.Equal(t, "application/octet-stream", DetectContentType(nil, ""))
}
