package zipflow

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinedReadSeeker_Read(t *testing.T) {
	var b sinkBuilder
	b.addBytes([]byte{1, 2, 3})
	b.addBytes([]byte{4, 5, 6, 7, 8, 9, 10})
	b.addBytes([]byte{11, 12, 13, 14, 15, 16, 17})

	rs := b.createReadSeeker()
	read, err := io.ReadAll(rs)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}, read)
}

func TestJoinedReadSeeker_SeekStart(t *testing.T) {
	cases := []struct {
		name   string
		seekTo int64
		want   []byte
	}{
		{"mid-part", 8, []byte{9, 10, 11, 12, 13, 14, 15, 16, 17}},
		{"part-boundary", 10, []byte{11, 12, 13, 14, 15, 16, 17}},
		{"beginning", 0, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}},
		{"end", 17, []byte{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var b sinkBuilder
			b.addBytes([]byte{1, 2, 3})
			b.addBytes([]byte{4, 5, 6, 7, 8, 9, 10})
			b.addBytes([]byte{11, 12, 13, 14, 15, 16, 17})

			rs := b.createReadSeeker()
			_, err := rs.Seek(tc.seekTo, io.SeekStart)
			require.NoError(t, err)

			read, err := io.ReadAll(rs)
			require.NoError(t, err)
			require.Equal(t, tc.want, read)
		})
	}
}

func TestJoinedReadSeeker_SeekEnd(t *testing.T) {
	var b sinkBuilder
	b.addBytes([]byte{1, 2, 3})
	b.addBytes([]byte{4, 5, 6, 7, 8, 9, 10})
	b.addBytes([]byte{11, 12, 13, 14, 15, 16, 17})

	rs := b.createReadSeeker()
	_, err := rs.Seek(-3, io.SeekEnd)
	require.NoError(t, err)

	read, err := io.ReadAll(rs)
	require.NoError(t, err)
	require.Equal(t, []byte{15, 16, 17}, read)
}

func TestJoinedReadSeeker_SeekCurrent(t *testing.T) {
	var b sinkBuilder
	b.addBytes([]byte{1, 2, 3})
	b.addBytes([]byte{4, 5, 6, 7, 8, 9, 10})
	b.addBytes([]byte{11, 12, 13, 14, 15, 16, 17})

	rs := b.createReadSeeker()
	_, _ = rs.Seek(5, io.SeekCurrent)
	_, _ = rs.Seek(-2, io.SeekCurrent)
	_, err := rs.Seek(4, io.SeekCurrent)
	require.NoError(t, err)

	read, err := io.ReadAll(rs)
	require.NoError(t, err)
	require.Equal(t, []byte{8, 9, 10, 11, 12, 13, 14, 15, 16, 17}, read)
}
