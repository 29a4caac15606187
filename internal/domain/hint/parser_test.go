package hint

import (
	"testing"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
)

func TestTaggedTokenParser_Parse(t *testing.T) {
	p := NewTaggedTokenParser()

	tests := []struct {
		name string
		text string
		want []ledger.BusinessKey
	}{
		{"hash delimiter", "dep #012345", []ledger.BusinessKey{"012345"}},
		{"delimiter with space", "deposit # 012345 thanks", []ledger.BusinessKey{"012345"}},
		{"tag word", "Res 019876 balance", []ledger.BusinessKey{"019876"}},
		{"tag with colon", "CHARTER:019877", []ledger.BusinessKey{"019877"}},
		{"tag glued to digits", "reserve019878", []ledger.BusinessKey{"019878"}},
		{"multiple references", "dep #012345 and #012346", []ledger.BusinessKey{"012345", "012346"}},
		{"duplicates dropped", "#012345 / #012345", []ledger.BusinessKey{"012345"}},
		{"untagged number ignored", "cheque 012345", nil},
		{"too short", "#1234", nil},
		{"too long", "#12345678", nil},
		{"empty", "", nil},
		{"amount is not a key", "paid 500.00 #", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(tt.text))
		})
	}
}

func TestFirst(t *testing.T) {
	p := NewTaggedTokenParser()

	key, ok := First(p, "dep #012345 #012346")
	assert.True(t, ok)
	assert.Equal(t, ledger.BusinessKey("012345"), key)

	_, ok = First(p, "no reference here")
	assert.False(t, ok)
}
