// Package searchtext normalises query text for the full-text leg of
// hybrid search. All store backends share the same normalisation so a
// query falls back to pure similarity mode consistently across them.
package searchtext

import "strings"

// minQueryLength is the minimum joined length of the normalised tokens
// for hybrid scoring to engage. Shorter queries carry too little lexical
// signal and fall back to pure similarity ranking.
const minQueryLength = 3

// stopWords are function words dropped during normalisation. The
// deployment serves Indonesian-language documents, so the list covers
// Indonesian function words plus the common English ones that show up
// in mixed queries.
var stopWords = map[string]bool{
	// Indonesian
	"ada": true, "adalah": true, "agar": true, "akan": true, "antara": true,
	"apa": true, "atau": true, "bagi": true, "bahwa": true, "banyak": true,
	"belum": true, "bisa": true, "dalam": true, "dan": true, "dapat": true,
	"dari": true, "dengan": true, "dia": true, "harus": true, "hanya": true,
	"ini": true, "itu": true, "jika": true, "juga": true, "kami": true,
	"kamu": true, "karena": true, "kepada": true, "kita": true, "lagi": true,
	"lain": true, "lebih": true, "masih": true, "mereka": true, "oleh": true,
	"pada": true, "para": true, "saat": true, "saja": true, "sama": true,
	"sangat": true, "saya": true, "sebagai": true, "sedang": true,
	"semua": true, "seperti": true, "serta": true, "setelah": true,
	"sudah": true, "telah": true, "tentang": true, "tersebut": true,
	"tidak": true, "untuk": true, "yaitu": true, "yang": true,
	// English
	"about": true, "and": true, "are": true, "for": true, "from": true,
	"have": true, "how": true, "that": true, "the": true, "this": true,
	"was": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "why": true, "will": true, "with": true,
}

// Normalize lowercases the query, tokenises on word boundaries, and
// drops stop words and tokens of length <= 2.
func Normalize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !isWordRune(r)
	})

	var tokens []string
	for _, tok := range fields {
		if len(tok) <= 2 || stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Usable reports whether normalised tokens carry enough signal for
// hybrid scoring. Empty token lists and joined strings shorter than
// three characters do not.
func Usable(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	return len(strings.Join(tokens, " ")) >= minQueryLength
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r > 127
}
