package nal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitMixedStartCodes(t *testing.T) {
	data := []byte{
		0, 0, 0, 1, 10, 20, 30,
		0, 0, 1, 40, 50,
		0, 0, 0, 1, 60, 70, 80,
	}
	nalus := Split(data)
	require.Equal(t, [][]byte{
		{10, 20, 30},
		{40, 50},
		{60, 70, 80},
	}, nalus)
}

func TestSplitNoLeadingStartCode(t *testing.T) {
	data := []byte{1, 2, 3, 0, 0, 1, 4, 5}
	nalus := Split(data)
	require.Equal(t, [][]byte{data}, nalus)
}

func TestSplitConsecutiveStartCodesYieldEmptySlice(t *testing.T) {
	data := []byte{0, 0, 1, 0, 0, 1, 9, 9}
	nalus := Split(data)
	require.Equal(t, [][]byte{{}, {9, 9}}, nalus)
}

func TestSplitEmpty(t *testing.T) {
	require.Nil(t, Split(nil))
}

func TestSplitRoundTrip(t *testing.T) {
	data := []byte{
		0, 0, 0, 1, 0x67, 0x42, 0xc0, 0x0d,
		0, 0, 1, 0x68, 0xe1,
	}
	nalus := Split(data)
	require.Len(t, nalus, 2)
	require.Equal(t, []byte{0x67, 0x42, 0xc0, 0x0d}, nalus[0])
	require.Equal(t, []byte{0x68, 0xe1}, nalus[1])
}
