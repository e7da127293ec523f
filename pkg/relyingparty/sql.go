package relyingparty

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLStore reads relying party configuration from a relational database.
// Endpoint lists and the claim mapping are stored as JSON columns.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQLStore on top of an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, entityID string) (*RelyingParty, error) {
	var (
		party           RelyingParty
		signAssertions  sql.NullBool
		signResponses   sql.NullBool
		encryptionCert  sql.NullString
		ssoServicesJSON []byte
		sloServicesJSON []byte
		claimMapJSON    []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT entity_id, signature_algorithm, digest_algorithm, name_id_format,
			sign_assertions, sign_responses, encryption_certificate,
			sso_services, slo_services, claim_mapping
		FROM relying_parties
		WHERE entity_id = $1
	`, entityID).Scan(
		&party.EntityID, &party.SignatureAlgorithm, &party.DigestAlgorithm,
		&party.NameIDFormat, &signAssertions, &signResponses, &encryptionCert,
		&ssoServicesJSON, &sloServicesJSON, &claimMapJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query relying party: %w", err)
	}

	if signAssertions.Valid {
		party.SignAssertions = &signAssertions.Bool
	}
	if signResponses.Valid {
		party.SignResponses = &signResponses.Bool
	}
	if encryptionCert.Valid {
		party.EncryptionCertificatePEM = encryptionCert.String
	}

	if len(ssoServicesJSON) > 0 {
		if err := json.Unmarshal(ssoServicesJSON, &party.SingleSignOnServices); err != nil {
			return nil, fmt.Errorf("failed to unmarshal SSO services: %w", err)
		}
	}
	if len(sloServicesJSON) > 0 {
		if err := json.Unmarshal(sloServicesJSON, &party.SingleLogoutServices); err != nil {
			return nil, fmt.Errorf("failed to unmarshal SLO services: %w", err)
		}
	}
	if len(claimMapJSON) > 0 {
		if err := json.Unmarshal(claimMapJSON, &party.ClaimMapping); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claim mapping: %w", err)
		}
	}

	return &party, nil
}

// Upsert inserts or replaces a relying party row.
func (s *SQLStore) Upsert(ctx context.Context, party *RelyingParty) error {
	ssoServicesJSON, err := json.Marshal(party.SingleSignOnServices)
	if err != nil {
		return fmt.Errorf("failed to marshal SSO services: %w", err)
	}
	sloServicesJSON, err := json.Marshal(party.SingleLogoutServices)
	if err != nil {
		return fmt.Errorf("failed to marshal SLO services: %w", err)
	}
	claimMapJSON, err := json.Marshal(party.ClaimMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal claim mapping: %w", err)
	}

	var encryptionCert sql.NullString
	if party.EncryptionCertificatePEM != "" {
		encryptionCert = sql.NullString{String: party.EncryptionCertificatePEM, Valid: true}
	}
	var signAssertions, signResponses sql.NullBool
	if party.SignAssertions != nil {
		signAssertions = sql.NullBool{Bool: *party.SignAssertions, Valid: true}
	}
	if party.SignResponses != nil {
		signResponses = sql.NullBool{Bool: *party.SignResponses, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relying_parties (
			entity_id, signature_algorithm, digest_algorithm, name_id_format,
			sign_assertions, sign_responses, encryption_certificate,
			sso_services, slo_services, claim_mapping, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (entity_id) DO UPDATE SET
			signature_algorithm = EXCLUDED.signature_algorithm,
			digest_algorithm = EXCLUDED.digest_algorithm,
			name_id_format = EXCLUDED.name_id_format,
			sign_assertions = EXCLUDED.sign_assertions,
			sign_responses = EXCLUDED.sign_responses,
			encryption_certificate = EXCLUDED.encryption_certificate,
			sso_services = EXCLUDED.sso_services,
			slo_services = EXCLUDED.slo_services,
			claim_mapping = EXCLUDED.claim_mapping,
			updated_at = NOW()
	`, party.EntityID, party.SignatureAlgorithm, party.DigestAlgorithm,
		party.NameIDFormat, signAssertions, signResponses, encryptionCert,
		ssoServicesJSON, sloServicesJSON, claimMapJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert relying party: %w", err)
	}
	return nil
}

// Delete removes a relying party row.
func (s *SQLStore) Delete(ctx context.Context, entityID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relying_parties WHERE entity_id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete relying party: %w", err)
	}
	return nil
}
