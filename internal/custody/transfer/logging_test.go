package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
)

func TestLogging(t *testing.T) {
	l := NewLogging(nil)
	p := id.NewPrincipalID()

	require.NoError(t, l.Transfer(context.Background(), p, money.New(150, "usd")))
	require.NoError(t, l.Transfer(context.Background(), p, money.New(50, "usd")))
	assert.Equal(t, money.New(200, "usd"), l.Sent(p))

	err := l.Transfer(context.Background(), p, money.New(1, "eur"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	err = l.Transfer(context.Background(), p, money.New(-1, "usd"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
