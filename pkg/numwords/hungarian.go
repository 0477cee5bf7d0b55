// Package numwords spells out integers so speech engines read them naturally.
package numwords

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	hungarianSmall = map[int64]string{
		0: "nulla", 1: "egy", 2: "kettő", 3: "három", 4: "négy", 5: "öt",
		6: "hat", 7: "hét", 8: "nyolc", 9: "kilenc", 10: "tíz",
		11: "tizenegy", 12: "tizenkettő", 13: "tizenhárom", 14: "tizennégy", 15: "tizenöt",
		16: "tizenhat", 17: "tizenhét", 18: "tizennyolc", 19: "tizenkilenc",
	}
	hungarianTens = map[int64]string{
		2: "húsz", 3: "harminc", 4: "negyven", 5: "ötven",
		6: "hatvan", 7: "hetven", 8: "nyolcvan", 9: "kilencven",
	}
	hungarianTensPrefix = map[int64]string{2: "huszon"}

	hungarianUnits = []struct {
		value int64
		name  string
	}{
		{1_000_000_000_000, "billió"},
		{1_000_000_000, "milliárd"},
		{1_000_000, "millió"},
		{1_000, "ezer"},
	}

	integerExpr = regexp.MustCompile(`\b\d+\b`)
)

// Hungarian spells n in Hungarian words.
func Hungarian(n int64) string {
	if n < 0 {
		return "mínusz " + Hungarian(-n)
	}
	if word, ok := hungarianSmall[n]; ok {
		return word
	}
	if n < 100 {
		tens, rest := n/10, n%10
		if rest == 0 {
			return hungarianTens[tens]
		}
		prefix, ok := hungarianTensPrefix[tens]
		if !ok {
			prefix = hungarianTens[tens]
		}
		return prefix + hungarianSmall[rest]
	}
	if n < 1000 {
		hundreds, rest := n/100, n%100
		prefix := "száz"
		if hundreds > 1 {
			prefix = compoundPrefix(hundreds) + "száz"
		}
		if rest == 0 {
			return prefix
		}
		return prefix + Hungarian(rest)
	}
	for _, unit := range hungarianUnits {
		if n < unit.value {
			continue
		}
		major, rest := n/unit.value, n%unit.value
		head := compoundPrefix(major) + unit.name
		if unit.value == 1000 && major == 1 {
			head = unit.name
		}
		if rest == 0 {
			return head
		}
		return head + " " + Hungarian(rest)
	}
	return strconv.FormatInt(n, 10)
}

// compoundPrefix uses the attributive "két" form in front of a multiplier.
func compoundPrefix(n int64) string {
	word := Hungarian(n)
	if strings.HasSuffix(word, "kettő") {
		return strings.TrimSuffix(word, "kettő") + "két"
	}
	return word
}

// ReplaceHungarian spells out every standalone integer in text.
func ReplaceHungarian(text string) string {
	return integerExpr.ReplaceAllStringFunc(text, func(match string) string {
		n, err := strconv.ParseInt(match, 10, 64)
		if err != nil {
			return match
		}
		return Hungarian(n)
	})
}
