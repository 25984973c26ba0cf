/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encryption

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/service"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/sqlite"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/policy"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc       *Service
	sessions  *session.Manager
	purchases *sqlite.PurchaseRecordRepository
	db        *sql.DB
}

func newTestEnv(t *testing.T, withResolver bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.CloseDB(db) })

	purchases := sqlite.NewPurchaseRecordRepository(db)
	var resolver policy.PurchaseResolver
	var recorder service.PurchaseRecordRepository
	if withResolver {
		resolver = purchases
		recorder = purchases
	}
	env := &testEnv{purchases: purchases, db: db}
	env.svc, env.sessions = newServiceWith(t, db, resolver, recorder)
	return env
}

func newServiceWith(t *testing.T, db *sql.DB, resolver policy.PurchaseResolver, recorder service.PurchaseRecordRepository) (*Service, *session.Manager) {
	t.Helper()
	sessions, err := session.NewManager(config.SessionConfig{TokenSecret: "test-secret"})
	require.Nil(t, err)

	cfg := config.EncryptionConfig{MasterKey: strings.Repeat("ab", 32)}
	svc, err := NewService(cfg, policy.NewEngine(resolver, nil), sqlite.NewPolicyRepository(db), recorder, sessions)
	require.Nil(t, err)
	return svc, sessions
}

// seedPurchase lists payload as an asset by seller S and records a purchase of it.
func seedPurchase(t *testing.T, env *testEnv, payload *model.EncryptedPayload, id, buyer string, maxUses int64) {
	t.Helper()
	ctx := context.Background()
	assetID := "asset-" + id
	require.Nil(t, sqlite.NewAssetRepository(env.db).Create(ctx, &model.Asset{
		ID: assetID, Name: "dataset", ManifestBlobID: "blob", PolicyID: payload.PolicyID,
		EncryptedDEK: payload.EncryptedDEK, IV: payload.IV, ContentHash: []byte{0},
		Seller: "S", Price: 5000, Size: int64(len(payload.EncryptedData)), CreatedAt: time.Now().UTC(),
	}))
	require.Nil(t, env.purchases.Create(ctx, &model.PurchaseRecord{
		ID: id, AssetID: assetID, PolicyID: payload.PolicyID,
		Buyer: buyer, Seller: "S", Price: 5000, CreatedAt: time.Now().UTC(), MaxUses: maxUses,
	}))
}

type failingPurchases struct {
	record  *model.PurchaseRecord
	findErr error
	useErr  error
}

func (f *failingPurchases) Create(context.Context, *model.PurchaseRecord) error { return nil }

func (f *failingPurchases) FindByID(context.Context, string) (*model.PurchaseRecord, error) {
	return f.record, f.findErr
}

func (f *failingPurchases) IncrementUses(context.Context, string) error { return f.useErr }

func decryptReq(p *model.EncryptedPayload) DecryptRequest {
	return DecryptRequest{
		Ciphertext:   p.EncryptedData,
		EncryptedDEK: p.EncryptedDEK,
		IV:           p.IV,
		PolicyID:     p.PolicyID,
	}
}

func TestService_EncryptDataPayload(t *testing.T) {
	env := newTestEnv(t, false)
	payload, err := env.svc.EncryptData(context.Background(), []byte("weights"), model.PolicyAllowlist,
		model.PolicyParams{AllowedAddresses: []string{"0xA"}})
	require.Nil(t, err)

	assert.True(t, payload.Success)
	assert.Len(t, payload.IV, NonceSize)
	assert.True(t, strings.HasPrefix(payload.PolicyID, "policy_"))
	assert.NotEqual(t, []byte("weights"), payload.EncryptedData)
	assert.Equal(t, 1, env.svc.deks.Len())
}

func TestService_EncryptDataFailures(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	payload, err := env.svc.EncryptData(ctx, nil, model.PolicyAllowlist, model.PolicyParams{AllowedAddresses: []string{"0xA"}})
	assert.ErrorIs(t, err, ErrEmptyData)
	assert.False(t, payload.Success)

	payload, err = env.svc.EncryptData(ctx, []byte("x"), model.PolicyPaymentGated, model.PolicyParams{Seller: "S"})
	assert.ErrorIs(t, err, policy.ErrInvalidPolicyParams)
	assert.False(t, payload.Success)
	assert.NotEmpty(t, payload.Error)
	assert.Equal(t, 0, env.svc.deks.Len())
}

func TestService_PaymentGatedDeniedWithoutPurchase(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	payload, err := env.svc.EncryptData(ctx, []byte("model"), model.PolicyPaymentGated,
		model.PolicyParams{Price: 5000, Seller: "S"})
	require.Nil(t, err)

	res, err := env.svc.DecryptData(ctx, decryptReq(payload))
	require.Nil(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.AccessGranted)
	assert.Nil(t, res.Data)
	assert.Contains(t, res.Error, "Policy conditions not met")

	req := decryptReq(payload)
	req.PurchaseRecordID = "PR1"
	req.RequesterAddress = "B"
	res, err = env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []byte("model"), res.Data)
}

func TestService_PaymentGatedWithPurchaseRecords(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	payload, err := env.svc.EncryptData(ctx, []byte("dataset"), model.PolicyPaymentGated,
		model.PolicyParams{Price: 5000, Seller: "S"})
	require.Nil(t, err)

	seedPurchase(t, env, payload, "PR1", "B", 1)

	req := decryptReq(payload)
	req.PurchaseRecordID = "PR-unknown"
	res, err := env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.False(t, res.AccessGranted)

	req.PurchaseRecordID = "PR1"
	req.RequesterAddress = "B"
	res, err = env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []byte("dataset"), res.Data)

	// the single use has been consumed
	res, err = env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.False(t, res.AccessGranted)
}

func TestService_SingleUsePurchaseConcurrentDecrypts(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	plaintext := bytes.Repeat([]byte("weights!"), 128<<10)
	payload, err := env.svc.EncryptData(ctx, plaintext, model.PolicyPaymentGated,
		model.PolicyParams{Price: 5000, Seller: "S"})
	require.Nil(t, err)
	seedPurchase(t, env, payload, "PR1", "B", 1)

	const workers = 16
	var (
		start    = make(chan struct{})
		wg       sync.WaitGroup
		released atomic.Int32
		denied   atomic.Int32
		failures = make(chan error, workers)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			req := decryptReq(payload)
			req.PurchaseRecordID = "PR1"
			req.RequesterAddress = "B"
			res, err := env.svc.DecryptData(ctx, req)
			if err != nil {
				failures <- err
				return
			}
			switch {
			case res.Success && bytes.Equal(plaintext, res.Data):
				released.Add(1)
			case !res.AccessGranted && res.Data == nil && res.Error == policy.DeniedReason:
				denied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(failures)

	for err := range failures {
		t.Errorf("DecryptData error: %v", err)
	}
	assert.Equal(t, int32(1), released.Load())
	assert.Equal(t, int32(workers-1), denied.Load())

	rec, err := env.purchases.FindByID(ctx, "PR1")
	require.Nil(t, err)
	assert.Equal(t, int64(1), rec.Uses)
}

func TestService_PurchaseLookupFailureIsAnError(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	lookup := &failingPurchases{findErr: errors.New("database is locked")}
	svc, _ := newServiceWith(t, env.db, lookup, lookup)

	payload, err := svc.EncryptData(ctx, []byte("model"), model.PolicyPaymentGated,
		model.PolicyParams{Price: 5000, Seller: "S"})
	require.Nil(t, err)

	req := decryptReq(payload)
	req.PurchaseRecordID = "PR1"
	req.RequesterAddress = "B"
	res, err := svc.DecryptData(ctx, req)
	assert.ErrorIs(t, err, policy.ErrPurchaseLookup)
	assert.False(t, res.AccessGranted)
	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	assert.NotEqual(t, policy.DeniedReason, res.Error)
}

func TestService_PurchaseUseFailureReleasesNothing(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	recorder := &failingPurchases{useErr: errors.New("disk I/O error")}
	svc, _ := newServiceWith(t, env.db, recorder, recorder)

	payload, err := svc.EncryptData(ctx, []byte("model"), model.PolicyPaymentGated,
		model.PolicyParams{Price: 5000, Seller: "S"})
	require.Nil(t, err)
	recorder.record = &model.PurchaseRecord{ID: "PR1", PolicyID: payload.PolicyID, Buyer: "B", Seller: "S", Price: 5000}

	req := decryptReq(payload)
	req.PurchaseRecordID = "PR1"
	req.RequesterAddress = "B"
	res, err := svc.DecryptData(ctx, req)
	assert.ErrorIs(t, err, ErrPurchaseUse)
	assert.False(t, res.Success)
	assert.Nil(t, res.Data)

	recorder.useErr = domain.ErrExhausted
	res, err = svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.False(t, res.AccessGranted)
	assert.Nil(t, res.Data)
	assert.Equal(t, policy.DeniedReason, res.Error)
}

func TestService_Allowlist(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	payload, err := env.svc.EncryptData(ctx, []byte("rows"), model.PolicyAllowlist,
		model.PolicyParams{AllowedAddresses: []string{"0xAlice", "0xBob"}})
	require.Nil(t, err)

	req := decryptReq(payload)
	req.RequesterAddress = "0xbob"
	res, err := env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []byte("rows"), res.Data)

	req.RequesterAddress = "0xMallory"
	res, err = env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.False(t, res.AccessGranted)
	assert.Equal(t, policy.DeniedReason, res.Error)
}

func TestService_TimeLock(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	unlock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	payload, err := env.svc.EncryptData(ctx, []byte("embargoed"), model.PolicyTimeLocked,
		model.PolicyParams{UnlockTime: unlock})
	require.Nil(t, err)

	env.svc.now = func() time.Time { return unlock.Add(-time.Second) }
	res, err := env.svc.DecryptData(ctx, decryptReq(payload))
	require.Nil(t, err)
	assert.False(t, res.AccessGranted)

	env.svc.now = func() time.Time { return unlock }
	res, err = env.svc.DecryptData(ctx, decryptReq(payload))
	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []byte("embargoed"), res.Data)
}

func TestService_DecryptWithoutCachedDEK(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	payload, err := env.svc.EncryptData(ctx, []byte("cold"), model.PolicyTeeOnly,
		model.PolicyParams{EnclaveID: "enclave-1"})
	require.Nil(t, err)
	env.svc.ForgetKeys()

	req := decryptReq(payload)
	res, err := env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.False(t, res.AccessGranted)

	req.Attestation = &model.AttestationDocument{ModuleID: "enclave-1"}
	res, err = env.svc.DecryptData(ctx, req)
	require.Nil(t, err)
	assert.Equal(t, []byte("cold"), res.Data)

	req.EncryptedDEK = append([]byte(nil), payload.EncryptedDEK...)
	req.EncryptedDEK[len(req.EncryptedDEK)-1] ^= 0x01
	res, err = env.svc.DecryptData(ctx, req)
	assert.ErrorIs(t, err, ErrKeyUnwrap)
	assert.False(t, res.Success)
}

func TestService_DecryptUnknownPolicy(t *testing.T) {
	env := newTestEnv(t, false)
	res, err := env.svc.DecryptData(context.Background(), DecryptRequest{PolicyID: "policy_missing"})
	assert.ErrorIs(t, err, ErrPolicyNotFound)
	assert.False(t, res.Success)
}

func TestService_BatchEncrypt(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	env.svc.maxPayload = 8

	results, err := env.svc.BatchEncrypt(ctx, []BatchFile{
		{Name: "a.csv", Data: []byte("alpha")},
		{Name: "empty.csv"},
		{Name: "big.csv", Data: []byte("far too large")},
		{Name: "b.csv", Data: []byte("beta")},
	}, model.PolicyAllowlist, model.PolicyParams{AllowedAddresses: []string{"0xA"}})
	require.Nil(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Payload.Success)
	assert.False(t, results[1].Payload.Success)
	assert.False(t, results[2].Payload.Success)
	assert.True(t, results[3].Payload.Success)
	assert.Equal(t, results[0].Payload.PolicyID, results[3].Payload.PolicyID)
	assert.NotEqual(t, results[0].Payload.EncryptedDEK, results[3].Payload.EncryptedDEK)
	assert.Equal(t, 2, env.svc.deks.Len())

	for _, i := range []int{0, 3} {
		req := decryptReq(results[i].Payload)
		req.RequesterAddress = "0xA"
		res, err := env.svc.DecryptData(ctx, req)
		require.Nil(t, err)
		assert.True(t, res.Success)
	}
}

func TestService_IssueAccessKeys(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	payload, err := env.svc.EncryptData(ctx, []byte("weights"), model.PolicyPaymentGated,
		model.PolicyParams{Price: 10, Seller: "S"})
	require.Nil(t, err)

	keys, err := env.svc.IssueAccessKeys(ctx, payload.PolicyID, payload.EncryptedDEK, "B")
	require.Nil(t, err)
	assert.Equal(t, payload.PolicyID, keys.DecryptionPolicy)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload.EncryptedDEK), keys.EncryptionKey)

	claims, err := env.sessions.ValidateToken(keys.SessionToken)
	require.Nil(t, err)
	assert.Equal(t, session.SessionID("B", payload.PolicyID), claims.SessionID)

	_, err = env.svc.IssueAccessKeys(ctx, "policy_missing", payload.EncryptedDEK, "B")
	assert.ErrorIs(t, err, ErrAccessKeys)
	_, err = env.svc.IssueAccessKeys(ctx, payload.PolicyID, nil, "B")
	assert.ErrorIs(t, err, ErrAccessKeys)
}
