package relyingparty

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/samlfed/pkg/saml"
)

var sqlColumns = []string{
	"entity_id", "signature_algorithm", "digest_algorithm", "name_id_format",
	"sign_assertions", "sign_responses", "encryption_certificate",
	"sso_services", "slo_services", "claim_mapping",
}

func TestSQLStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ssoJSON := `[{"binding":"urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST","location":"https://sp.example.com/acs","index":0,"is_default":true}]`
	claimJSON := `{"email":"mail"}`

	mock.ExpectQuery(regexp.QuoteMeta("FROM relying_parties")).
		WithArgs("https://sp.example.com").
		WillReturnRows(sqlmock.NewRows(sqlColumns).AddRow(
			"https://sp.example.com", "", "", saml.NameIDFormatEmail,
			true, nil, nil, []byte(ssoJSON), []byte(`[]`), []byte(claimJSON)))

	store := NewSQLStore(db)
	party, err := store.Get(context.Background(), "https://sp.example.com")
	require.NoError(t, err)

	assert.Equal(t, "https://sp.example.com", party.EntityID)
	assert.Equal(t, saml.NameIDFormatEmail, party.NameIDFormat)
	require.NotNil(t, party.SignAssertions)
	assert.True(t, *party.SignAssertions)
	assert.Nil(t, party.SignResponses)
	assert.Empty(t, party.EncryptionCertificatePEM)
	require.Len(t, party.SingleSignOnServices, 1)
	assert.Equal(t, saml.BindingPost, party.SingleSignOnServices[0].Binding)
	assert.True(t, party.SingleSignOnServices[0].IsDefault)
	assert.Equal(t, "mail", party.ClaimMapping["email"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM relying_parties")).
		WithArgs("https://unknown.example.com").
		WillReturnRows(sqlmock.NewRows(sqlColumns))

	store := NewSQLStore(db)
	_, err = store.Get(context.Background(), "https://unknown.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO relying_parties")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewSQLStore(db)
	signResponses := false
	err = store.Upsert(context.Background(), &RelyingParty{
		EntityID:      "https://sp.example.com",
		SignResponses: &signResponses,
		SingleSignOnServices: []Endpoint{
			{Binding: saml.BindingPost, Location: "https://sp.example.com/acs"},
		},
		ClaimMapping: map[string]string{"email": "mail"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM relying_parties")).
		WithArgs("https://sp.example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewSQLStore(db)
	require.NoError(t, store.Delete(context.Background(), "https://sp.example.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
