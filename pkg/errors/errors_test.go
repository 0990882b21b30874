package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:         {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:          {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
		CodeInternal:          {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		CodeInvalidTransition: {HTTPStatus: http.StatusConflict, PublicMessage: "order status transition not allowed", DetailsAllowed: true},
		CodeInsufficientFunds: {HTTPStatus: http.StatusPaymentRequired, PublicMessage: "insufficient wallet balance", DetailsAllowed: true},
		CodeAlreadyCompleted:  {HTTPStatus: http.StatusConflict, PublicMessage: "already completed", DetailsAllowed: true},
		CodeGateway:           {HTTPStatus: http.StatusBadGateway, PublicMessage: "payment gateway unavailable", Retryable: true},
		CodeDataIntegrity:     {HTTPStatus: http.StatusInternalServerError, PublicMessage: "data integrity violation"},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCauseAndMessage(t *testing.T) {
	cause := stdErrors.New("conn reset")
	err := Wrap(CodeDependency, cause, "load wallet")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: load wallet: conn reset", err.Error())
	assert.Equal(t, "NOT_FOUND: gone", New(CodeNotFound, "gone").Error())
	assert.Nil(t, New(CodeValidation, "x").Details())

	detailed := New(CodeInsufficientFunds, "short").WithDetails(map[string]int64{"shortfall_minor": 500})
	assert.Equal(t, map[string]int64{"shortfall_minor": 500}, detailed.Details())
}

func TestAsAndIsCodeFollowTheChain(t *testing.T) {
	outer := fmt.Errorf("debit: %w", New(CodeInsufficientFunds, "short"))

	require.NotNil(t, As(outer))
	assert.True(t, IsCode(outer, CodeInsufficientFunds))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
}

func TestDumpCollectsChain(t *testing.T) {
	d := Dump(Wrap(CodeDependency, stdErrors.New("conn reset"), "load wallet"))
	assert.Equal(t, CodeDependency, d.Code)
	assert.Len(t, d.Chain, 2)
	assert.Nil(t, d.PG)
}

func TestDumpExtractsPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_wallet_transactions_reference", TableName: "wallet_transactions"}
	d := Dump(Wrap(CodeDependency, fmt.Errorf("insert ledger row: %w", pgErr), "append transaction"))

	require.NotNil(t, d.PG)
	assert.Equal(t, "23505", d.PG.Code)
	fields := d.Fields()
	assert.Equal(t, "idx_wallet_transactions_reference", fields["pg_constraint"])
	assert.Equal(t, "wallet_transactions", fields["pg_table"])

	_, ok := Dump(stdErrors.New("plain")).Fields()["pg_code"]
	assert.False(t, ok)
}
