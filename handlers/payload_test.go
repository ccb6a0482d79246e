package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_AsID_CoercesStringsAndNumbers(t *testing.T) {
	r := require.New(t)

	r.Equal("5", asID("5"))
	r.Equal("5", asID(" 5 "))
	r.Equal("5", asID(float64(5)))
	r.Equal("", asID(nil))
	r.Equal("", asID(true))
	r.Equal("", asID(map[string]any{}))
}

func Test_FirstID_PicksFirstUsableAlias(t *testing.T) {
	r := require.New(t)

	r.Equal("7", firstID(nil, "", float64(7), "9"))
	r.Equal("", firstID(nil, "", "  "))
}
