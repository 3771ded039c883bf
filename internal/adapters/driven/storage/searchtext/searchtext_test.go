package searchtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "lowercases and tokenises",
			query: "Surat Keputusan REKTOR",
			want:  []string{"surat", "keputusan", "rektor"},
		},
		{
			name:  "drops indonesian stop words",
			query: "apa yang dimaksud dengan beasiswa",
			want:  []string{"dimaksud", "beasiswa"},
		},
		{
			name:  "drops english stop words",
			query: "what is the tuition fee",
			want:  []string{"tuition", "fee"},
		},
		{
			name:  "drops short tokens",
			query: "ke ui itb",
			want:  []string{"itb"},
		},
		{
			name:  "splits on punctuation",
			query: "biaya-kuliah: semester_ganjil",
			want:  []string{"biaya", "kuliah", "semester_ganjil"},
		},
		{
			name:  "empty query",
			query: "",
			want:  nil,
		},
		{
			name:  "only stop words",
			query: "yang dan untuk",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.query))
		})
	}
}

func TestUsable(t *testing.T) {
	assert.False(t, Usable(nil))
	assert.False(t, Usable([]string{}))
	assert.True(t, Usable([]string{"abc"}))
	assert.True(t, Usable([]string{"beasiswa", "unggulan"}))
}

func TestNormalize_PreservesNonASCII(t *testing.T) {
	// Runes beyond ASCII count as word runes so accented and non-Latin
	// content is not split apart.
	tokens := Normalize("kualifikasi émigré")
	assert.Equal(t, []string{"kualifikasi", "émigré"}, tokens)
}
