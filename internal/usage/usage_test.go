package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumIsOrderIndependent(t *testing.T) {
	calls := []Usage{
		{Input: 120, Output: 30, Total: 150},
		{Input: 5, Output: 900, Total: 905},
		{Input: 0, Output: 0, Total: 0},
		{Input: 77, Output: 23, Total: 100},
	}

	want := Sum(calls...)
	assert.Equal(t, Usage{Input: 202, Output: 953, Total: 1155}, want)

	reversed := make([]Usage, len(calls))
	for i, u := range calls {
		reversed[len(calls)-1-i] = u
	}
	assert.Equal(t, want, Sum(reversed...))

	// (a+b)+(c+d) == a+(b+(c+d))
	left := Sum(calls[0], calls[1]).Add(Sum(calls[2], calls[3]))
	right := calls[0].Add(calls[1].Add(calls[2].Add(calls[3])))
	assert.Equal(t, left, right)
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("Problem Research", Usage{Input: 10, Output: 20, Total: 30})
	acc.Add("Customer Persona", Usage{Input: 1, Output: 2, Total: 3})
	acc.Add("Problem Research", Usage{Input: 5, Output: 5, Total: 10})

	assert.Equal(t, Usage{Input: 16, Output: 27, Total: 43}, acc.Total())

	breakdown := acc.Breakdown()
	require.Len(t, breakdown, 2)
	assert.Equal(t, "Problem Research", breakdown[0].Stage)
	assert.Equal(t, 40, breakdown[0].Usage.Total)
	assert.Equal(t, "Customer Persona", breakdown[1].Stage)

	assert.InDelta(t, 43.0/1000*gramsPerThousandTokens, acc.CO2Grams(), 1e-9)

	restored := NewAccumulator()
	restored.Restore(acc.Ledger())
	assert.Equal(t, acc.Total(), restored.Total())

	acc.Reset()
	assert.True(t, acc.Total().IsZero())
	assert.Empty(t, acc.Breakdown())
}
