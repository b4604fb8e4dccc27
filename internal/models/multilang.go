package models

import "reflect"

type Lang string

const (
	// LangEN is the base language: the universal fallback whenever a
	// language-specific value is missing or empty.
	LangEN Lang = "en"
	LangRU Lang = "ru"
)

// Langs lists the supported languages in precedence order.
var Langs = []Lang{LangEN, LangRU}

// fallbackChains maps each language to the ordered list of languages to try.
// The chain is finite and evaluated iteratively; the base language chain is
// length one so resolution always terminates.
var fallbackChains = map[Lang][]Lang{
	LangEN: {LangEN},
	LangRU: {LangRU, LangEN},
}

// MultiLang holds one optional value per supported language.
type MultiLang[T any] struct {
	EN T `json:"en,omitempty"`
	RU T `json:"ru,omitempty"`
}

func (m MultiLang[T]) value(lang Lang) T {
	if lang == LangRU {
		return m.RU
	}
	return m.EN
}

// Raw returns the stored value for lang with no fallback applied.
func (m MultiLang[T]) Raw(lang Lang) T {
	return m.value(lang)
}

// Resolve walks lang's fallback chain and returns the first present value.
// A value is absent when it is the zero value or an empty collection.
func (m MultiLang[T]) Resolve(lang Lang) T {
	chain, ok := fallbackChains[lang]
	if !ok {
		chain = fallbackChains[LangEN]
	}
	for _, l := range chain {
		v := m.value(l)
		if !isAbsent(v) {
			return v
		}
	}
	return m.value(LangEN)
}

// Set stores v under lang.
func (m *MultiLang[T]) Set(lang Lang, v T) {
	if lang == LangRU {
		m.RU = v
	} else {
		m.EN = v
	}
}

func isAbsent(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}
