package ipv4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pack(a, b, c, d uint32) uint32 {
	return a<<24 | b<<16 | c<<8 | d
}

// TestParse covers accepted addresses and every rejection rule
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint32
		wantErr bool
	}{
		{name: "simple", input: "1.2.3.4", want: pack(1, 2, 3, 4)},
		{name: "all zero", input: "0.0.0.0", want: 0},
		{name: "all max", input: "255.255.255.255", want: 0xFFFFFFFF},
		{name: "private", input: "10.0.0.1", want: 0x0A000001},
		{name: "leading zeros", input: "010.001.000.007", want: pack(10, 1, 0, 7)},
		{name: "empty", input: "", wantErr: true},
		{name: "three groups", input: "1.2.3", wantErr: true},
		{name: "five groups", input: "1.2.3.4.5", wantErr: true},
		{name: "empty group", input: "1..3.4", wantErr: true},
		{name: "leading dot", input: ".1.2.3", wantErr: true},
		{name: "trailing dot", input: "1.2.3.", wantErr: true},
		{name: "octet 256", input: "1.2.3.256", wantErr: true},
		{name: "octet overflow", input: "1.2.99999.4", wantErr: true},
		{name: "letters", input: "not.an.ip", wantErr: true},
		{name: "hex digit", input: "1.2.3.a", wantErr: true},
		{name: "space", input: "1.2.3.4 ", wantErr: true},
		{name: "sign", input: "-1.2.3.4", wantErr: true},
		{name: "too long", input: "0001.002.003.004", wantErr: true},
		{name: "carriage return", input: "1.2.3.4\r", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestFormatRoundTrip checks Format against Parse on boundary values
func TestFormatRoundTrip(t *testing.T) {
	for _, addr := range []uint32{0, 1, 255, 256, 0x0A000001, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF} {
		s := Format(addr)
		got, err := Parse([]byte(s))
		require.NoError(t, err, s)
		assert.Equal(t, addr, got, s)
	}
	assert.Equal(t, "192.168.1.20", Format(pack(192, 168, 1, 20)))
}

func TestAppendFormat(t *testing.T) {
	buf := AppendFormat([]byte("ip="), pack(8, 8, 4, 4))
	assert.Equal(t, "ip=8.8.4.4", string(buf))
}

func BenchmarkParse(b *testing.B) {
	rec := []byte("192.168.100.200")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(rec); err != nil {
			b.Fatal(err)
		}
	}
}
