package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Query
	}{
		{"empty", "", Query{}},
		{"blank", "   ", Query{}},
		{"bare word", "web", Query{Name: "web"}},
		{"bare words join", "web  backend", Query{Name: "web backend"}},
		{"name field", "name:web", Query{Name: "web"}},
		{"field is case insensitive", "Name:web", Query{Name: "web"}},
		{
			name:  "quoted tag",
			input: `tag:"kuma.io/protocol: http"`,
			want:  Query{Tags: map[string]string{"kuma.io/protocol": "http"}},
		},
		{
			name:  "unquoted tag",
			input: "tag:version:v2",
			want:  Query{Tags: map[string]string{"version": "v2"}},
		},
		{
			name:  "shorthands",
			input: "service:redis protocol:tcp zone:east",
			want: Query{Tags: map[string]string{
				"kuma.io/service":  "redis",
				"kuma.io/protocol": "tcp",
				"kuma.io/zone":     "east",
			}},
		},
		{
			name:  "mixed",
			input: `web service:backend "two words"`,
			want:  Query{Name: "web two words", Tags: map[string]string{"kuma.io/service": "backend"}},
		},
		{
			name:  "escaped quote",
			input: `name:"a \"b\""`,
			want:  Query{Name: `a "b"`},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input   string
		wantErr string
	}{
		{"servce:web", `unknown filter field "servce", did you mean "service"?`},
		{"qq:web", `unknown filter field "qq", expected one of name, protocol, service, tag, zone`},
		{"tag:novalue", `tag filter "novalue" must be key:value`},
		{`name:"open`, `unterminated quote`},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestQuery_StringRoundTrip(t *testing.T) {
	q := Query{Name: "web 1", Tags: map[string]string{"kuma.io/protocol": "http", "version": "v2"}}
	s := q.String()
	assert.Equal(t, `name:"web 1" tag:kuma.io/protocol:http tag:version:v2`, s)

	parsed, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, q, parsed)
}

func TestQuery_Merge(t *testing.T) {
	q := Query{Name: "web", Tags: map[string]string{"kuma.io/zone": "east"}}
	got := q.Merge(map[string]string{"kuma.io/zone": "west", "version": "v1"})
	assert.Equal(t, map[string]string{"kuma.io/zone": "east", "version": "v1"}, got.Tags)
	assert.Equal(t, "web", got.Name)
	assert.Equal(t, map[string]string{"kuma.io/zone": "east"}, q.Tags, "receiver is not modified")

	assert.True(t, Query{}.Empty())
	assert.False(t, got.Empty())
}
