package cache

import (
	"fmt"
	"strings"
)

const documentPrefix = "doc"

// DocumentKey is the key of a cached API document: doc:<SYMBOL>:<kind>[:params].
func DocumentKey(symbol, kind string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(documentPrefix + ":" + symbol + ":" + kind)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

// DocumentPattern matches every cached document of symbol.
func DocumentPattern(symbol string) string {
	return documentPrefix + ":" + symbol + ":*"
}
