package closeonce

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseRunsOnce(t *testing.T) {
	var o Closed
	calls := 0
	f := func() error {
		calls++
		return errors.New("boom")
	}

	err1 := o.Close(f)
	err2 := o.Close(f)

	assert.Equal(t, 1, calls)
	assert.Equal(t, err1, err2)
	assert.True(t, o.Closed())
}

func TestClosedIsFalseBeforeClose(t *testing.T) {
	var o Closed
	assert.False(t, o.Closed())
}
