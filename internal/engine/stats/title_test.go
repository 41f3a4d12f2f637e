package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Expanse", "the expanse"},
		{"Doctor Who (2005)", "doctor who"},
		{"Marvel's Agents of S.H.I.E.L.D.", "marvel s agents of s h i e l d"},
		{"Pokémon: Indigo League", "pokemon indigo league"},
		{"  Star   Trek:  Picard ", "star trek picard"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestTitlesMatch(t *testing.T) {
	assert.True(t, TitlesMatch("Doctor Who (2005)", "Doctor Who"))
	assert.True(t, TitlesMatch("Pokemon", "Pokémon: Indigo League"), "containment counts")
	assert.True(t, TitlesMatch("Pokémon: Indigo League", "Pokemon"), "in both directions")
	assert.False(t, TitlesMatch("Dark", "Severance"))
	assert.False(t, TitlesMatch("", "Dark"))
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"Dark Matter", "Severance", "Dark", "Dark"}
	assert.Equal(t, 2, BestMatch("Dark (2017)", candidates), "exact match wins, earliest first")
	assert.Equal(t, 0, BestMatch("Dark Matter", candidates))
	assert.Equal(t, -1, BestMatch("The Expanse", candidates))
	assert.Equal(t, -1, BestMatch("Dark", nil))
}
