package progress

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallback(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf, "Analyzing", 1)

	cb := tr.Callback()
	cb(1, 4, "aggregate")
	cb(2, 4, "ranking")

	assert.Equal(t, 4, tr.bar.GetMax())
	assert.Equal(t, 2, int(tr.bar.State().CurrentNum))
	tr.FinishSuccess()
}

func TestFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := newSpinner(&buf, "Loading dataset")
	tr.Tick()
	tr.FinishError(errors.New("no such file"))

	assert.Contains(t, buf.String(), "Loading dataset error: no such file")
}
