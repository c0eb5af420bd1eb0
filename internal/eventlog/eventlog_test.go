package eventlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stringerPair struct {
	s string
}

func (p stringerPair) String() string { return p.s }

func TestLineWriter_FormatsSchema(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)

	lw.Emit(Accepted, Descriptor{
		Type:       stringerPair{"Lim"},
		Side:       stringerPair{"Buy"},
		Price:      100,
		InitialQty: 10,
		UserID:     1,
	})
	err := lw.Flush()
	assert.NoError(t, err)

	assert.Equal(t, "Accepted,Lim,Buy,100,10,1\n", buf.String())
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "Accepted", Accepted.String())
	assert.Equal(t, "Queued", Queued.String())
	assert.Equal(t, "Executed", Executed.String())
	assert.Equal(t, "PartiallyExecuted", PartiallyExecuted.String())
	assert.Equal(t, "Canceled", Canceled.String())
}
