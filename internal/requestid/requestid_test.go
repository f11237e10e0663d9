package requestid_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/parley/internal/requestid"
)

func TestFromContext(t *testing.T) {
	ctx := requestid.NewContext(context.Background(), "req-42")

	assert.Equal(t, "req-42", requestid.FromContext(ctx))
	assert.Equal(t, "", requestid.FromContext(context.Background()))
}
