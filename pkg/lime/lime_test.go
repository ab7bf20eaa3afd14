package lime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a PhysReader over an in-memory byte slice addressed
// starting at base; reads past the end of data return 0 bytes, no error,
// modeling a hole or short range.
type fakeSource struct {
	base uint64
	data []byte
}

func (f *fakeSource) Read(physAddr uint64, buf []byte) (int, error) {
	if physAddr < f.base || physAddr >= f.base+uint64(len(f.data)) {
		return 0, nil
	}
	off := physAddr - f.base
	n := copy(buf, f.data[off:])
	return n, nil
}

func TestEncodeRawCoverage(t *testing.T) {
	ranges := []Range{
		{Start: 0x1000, End: 0x2000},
		{Start: 0x3000, End: 0x3100},
	}
	data := bytes.Repeat([]byte{0xAB}, 0x2100)
	src := &fakeSource{base: 0x1000, data: data}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ranges, src, EncodeOptions{Format: Raw}))

	var got []Range
	err := Decode(&buf, DecodeOptions{}, func(r Range, payload []byte) error {
		got = append(got, r)
		assert.Equal(t, int(r.Len()), len(payload))
		for _, b := range payload {
			assert.Equal(t, byte(0xAB), b)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ranges, got)
}

func TestEncodePaddedZeroFillsShortTail(t *testing.T) {
	const pageSize = 4096
	r := Range{Start: 0, End: 4 * pageSize}
	// Source only has 3 pages + 17 bytes of real data; mimic a source
	// that reports a genuinely short read at the final page by trimming
	// its backing data exactly to the range length, then truncating a
	// further 4079 bytes to force a short read of the last page.
	full := bytes.Repeat([]byte{0x7E}, int(r.Len()))
	short := full[:3*pageSize+17]
	src := &fakeSource{base: 0, data: short}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []Range{r}, src, EncodeOptions{Format: Padded, PageSize: pageSize}))

	// header + 4 full pages (last one padded with zeros after byte 17)
	require.Equal(t, HeaderSize+4*pageSize, buf.Len())

	payload := buf.Bytes()[HeaderSize:]
	lastPage := payload[3*pageSize : 4*pageSize]
	for i := 0; i < 17; i++ {
		assert.Equal(t, byte(0x7E), lastPage[i])
	}
	for i := 17; i < pageSize; i++ {
		assert.Equal(t, byte(0), lastPage[i])
	}
}

func TestEncodeCompressedZeroSourceIsSmall(t *testing.T) {
	const pageSize = 4096
	ranges := []Range{{Start: 0x00100000, End: 0x0a6f3018}, {Start: 0x0a6f8018, End: 0x0a6fa058}}
	src := &fakeSource{base: 0, data: make([]byte, 0x0a6fa058)} // all zero

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ranges, src, EncodeOptions{Format: Compressed, PageSize: pageSize}))

	totalPages := 0
	for _, r := range ranges {
		pages := r.Len() / uint64(pageSize)
		if r.Len()%uint64(pageSize) != 0 {
			pages++
		}
		totalPages += int(pages)
	}
	// Header overhead plus a few hundred bytes per page for an all-zero
	// source: a Snappy copy element covers at most 64 bytes, so a zero page
	// encodes to about 64 three-byte copies (~196 bytes) behind its 4-byte
	// length prefix, a sixteenth of a raw page or less.
	maxExpected := len(ranges)*HeaderSize + totalPages*256
	assert.Less(t, buf.Len(), maxExpected)
}

func TestRoundTripAllFormatPairs(t *testing.T) {
	const pageSize = 4096
	ranges := []Range{{Start: 0, End: 2*pageSize + 100}}
	data := make([]byte, 2*pageSize+100)
	for i := range data {
		data[i] = byte(i * 7)
	}
	src := &fakeSource{base: 0, data: data}

	formats := []Format{Raw, Compressed}
	for _, fin := range formats {
		for _, fout := range formats {
			t.Run(fin.String()+"_to_"+fout.String(), func(t *testing.T) {
				var encoded bytes.Buffer
				require.NoError(t, Encode(&encoded, ranges, src, EncodeOptions{Format: fin, PageSize: pageSize}))

				type decoded struct {
					r       Range
					payload []byte
				}
				var first []decoded
				require.NoError(t, Decode(bytes.NewReader(encoded.Bytes()), DecodeOptions{}, func(r Range, payload []byte) error {
					cp := append([]byte(nil), payload...)
					first = append(first, decoded{r, cp})
					return nil
				}))

				var reencoded bytes.Buffer
				for _, d := range first {
					srcOut := &fakeSource{base: d.r.Start, data: d.payload}
					require.NoError(t, Encode(&reencoded, []Range{d.r}, srcOut, EncodeOptions{Format: fout, PageSize: pageSize}))
				}

				var second []decoded
				require.NoError(t, Decode(bytes.NewReader(reencoded.Bytes()), DecodeOptions{}, func(r Range, payload []byte) error {
					cp := append([]byte(nil), payload...)
					second = append(second, decoded{r, cp})
					return nil
				}))

				require.Equal(t, len(first), len(second))
				for i := range first {
					assert.Equal(t, first[i].r, second[i].r)
					assert.Equal(t, first[i].payload, second[i].payload)
				}
			})
		}
	}
}

func TestCompressionIdempotence(t *testing.T) {
	const pageSize = 4096
	ranges := []Range{{Start: 0, End: pageSize * 3}}
	data := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, pageSize*3/4)
	src := &fakeSource{base: 0, data: data}

	var once bytes.Buffer
	require.NoError(t, Encode(&once, ranges, src, EncodeOptions{Format: Compressed, PageSize: pageSize}))

	var payload []byte
	require.NoError(t, Decode(bytes.NewReader(once.Bytes()), DecodeOptions{}, func(r Range, p []byte) error {
		payload = append([]byte(nil), p...)
		return nil
	}))

	src2 := &fakeSource{base: 0, data: payload}
	var twice bytes.Buffer
	require.NoError(t, Encode(&twice, ranges, src2, EncodeOptions{Format: Compressed, PageSize: pageSize}))

	assert.Equal(t, once.Bytes(), twice.Bytes())
}

func TestHeaderRejectsUnknownMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = 0xFF
	err := Decode(bytes.NewReader(buf), DecodeOptions{}, func(Range, []byte) error { return nil })
	require.Error(t, err)
}
