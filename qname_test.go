package stubresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanQnames(t *testing.T) {
	cfg := NewConfig()
	cfg.Domain = "example.com"
	cfg.Search = []string{"eng.example.com", "example.com"}
	cfg.Ndots = 1

	cases := []struct {
		name  string
		input string
		flag  searchFlag
		want  []string
	}{
		{
			name:  "absolute input used as-is",
			input: "www.example.org.",
			flag:  searchUnspecified,
			want:  []string{"www.example.org."},
		},
		{
			name:  "relative, search enabled, below ndots threshold",
			input: "host",
			flag:  searchEnabled,
			want:  []string{"host.eng.example.com.", "host.example.com."},
		},
		{
			name:  "relative, search disabled",
			input: "host",
			flag:  searchDisabled,
			want:  []string{"host.example.com."},
		},
		{
			name:  "relative, at or above ndots threshold skips search list",
			input: "host.sub",
			flag:  searchEnabled,
			want:  []string{"host.sub.example.com."},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := planQnames(tc.input, tc.flag, cfg)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSearchFlag_resolve(t *testing.T) {
	assert.True(t, searchEnabled.resolve(false))
	assert.False(t, searchDisabled.resolve(true))
	assert.True(t, searchUnspecified.resolve(true))
	assert.False(t, searchUnspecified.resolve(false))
}

func TestJoinSuffix(t *testing.T) {
	assert.Equal(t, "host.example.com.", joinSuffix("host", "example.com."))
	assert.Equal(t, "host.", joinSuffix("host", ""))
}
