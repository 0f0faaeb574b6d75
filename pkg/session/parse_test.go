package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/photonctl/internal/schema"
)

func TestParseLightLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "with unit", input: "123.4 lux", want: 123.4},
		{name: "without unit", input: "42", want: 42},
		{name: "unit without space", input: "7lux", want: 7},
		{name: "padded", input: "  0.5  lux \n", want: 0.5},
		{name: "negative", input: "-1 lux", want: -1},
		{name: "unit only", input: "lux", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "not a number", input: "abc lux", wantErr: true},
		{name: "nan", input: "NaN", wantErr: true},
		{name: "infinity", input: "Inf lux", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLightLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSSIDList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "A, B,,C ", want: []string{"A", "B", "C"}},
		{input: "Home", want: []string{"Home"}},
		{input: "", want: []string{}},
		{input: " , ,", want: []string{}},
		{input: "Dup,Dup", want: []string{"Dup", "Dup"}},
		{input: "My Network, Café", want: []string{"My Network", "Café"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSSIDList(tt.input))
		})
	}
}

func TestParseConnectedStatus(t *testing.T) {
	assert.True(t, ParseConnectedStatus([]byte{0x31}))
	assert.True(t, ParseConnectedStatus([]byte("1\n")))
	assert.True(t, ParseConnectedStatus([]byte("1\x00")))
	assert.False(t, ParseConnectedStatus([]byte{0x30}))
	assert.False(t, ParseConnectedStatus(nil))
	assert.False(t, ParseConnectedStatus([]byte("11")))
	assert.False(t, ParseConnectedStatus([]byte{0xff}))
}

func TestEncodeCredentials(t *testing.T) {
	assert.Equal(t, []byte("Home,secret"), EncodeCredentials("Home", "secret"))
	assert.Equal(t, []byte("Open,"), EncodeCredentials("Open", ""))
}

func TestStateCloneIsDeep(t *testing.T) {
	st := NewState()
	st.Connected = &PeripheralInfo{ID: "A"}
	st.WifiNetworks = []string{"x"}
	st.Resolved = []schema.Role{schema.LightLevel}
	st.LightHistory = []LightSample{{Value: 1}}

	c := st.Clone()
	c.Connected.ID = "B"
	c.WifiNetworks[0] = "y"
	c.Resolved[0] = schema.WifiEnabled
	c.LightHistory[0].Value = 2

	assert.Equal(t, "A", st.Connected.ID)
	assert.Equal(t, []string{"x"}, st.WifiNetworks)
	assert.Equal(t, []schema.Role{schema.LightLevel}, st.Resolved)
	assert.Equal(t, float64(1), st.LightHistory[0].Value)
}

func TestLastSample(t *testing.T) {
	st := NewState()
	_, ok := st.LastSample()
	assert.False(t, ok)

	st.LightHistory = []LightSample{{Value: 1}, {Value: 2}}
	s, ok := st.LastSample()
	assert.True(t, ok)
	assert.Equal(t, float64(2), s.Value)
}

func TestPhaseText(t *testing.T) {
	b, err := PhaseReconnecting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "reconnecting", string(b))
	assert.Equal(t, "unknown", Phase(42).String())
}
